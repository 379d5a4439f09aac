package classify

import "sort"

// RearrangeByAIPreference merges the user's tag selections with the AI's
// ranked list. The user's tags are reordered by their position in the AI
// list (tags the AI did not mention sort to the end, keeping their original
// relative order), then AI-only suggestions are appended, and the combined
// list is truncated to MaxTags. The user's selections therefore always
// precede any AI-only addition.
func RearrangeByAIPreference(user, ai []string) []string {
	if len(user) == 0 {
		return capTags(append([]string(nil), ai...))
	}

	rank := make(map[string]int, len(ai))
	for i, tag := range ai {
		if _, ok := rank[tag]; !ok {
			rank[tag] = i
		}
	}

	absent := len(ai) + 1
	rankOf := func(tag string) int {
		if r, ok := rank[tag]; ok {
			return r
		}
		return absent
	}

	merged := append([]string(nil), user...)
	sort.SliceStable(merged, func(i, j int) bool {
		return rankOf(merged[i]) < rankOf(merged[j])
	})

	inUser := make(map[string]struct{}, len(user))
	for _, tag := range user {
		inUser[tag] = struct{}{}
	}
	for _, tag := range ai {
		if _, ok := inUser[tag]; !ok {
			merged = append(merged, tag)
		}
	}

	return capTags(merged)
}
