package classify

import (
	"fmt"
	"strings"
)

// BuildPrompt assembles the instruction set sent to the text generator.
// The reply contract is a single JSON object with fields "description",
// "generi" and "topics".
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are the tag curator of a publishing platform. Read the article below and reply with exactly one JSON object with the fields \"description\" (string), \"generi\" (array of strings) and \"topics\" (array of strings).\n\n")

	b.WriteString("Description rules:\n")
	b.WriteString("- 20 to 30 words, active voice, concrete imagery.\n")
	b.WriteString("- No generic cliches, no copy-paste of the article's own phrasing.\n\n")

	b.WriteString("A genre describes the expressive style of the writing; a topic describes its subject matter. Never pick a topic that duplicates the concept already expressed by the chosen genre.\n\n")

	b.WriteString("Tag format: prefer single words, always lowercase; write multi-word tags without hyphens.\n")
	if req.AllowNewTags {
		b.WriteString("If no existing tag fits, you may propose a new one by prefixing it with * (for example *onirico). Propose new tags only when truly necessary.\n")
	} else {
		b.WriteString("Only use tags from the lists provided. Do not invent new tags.\n")
	}
	b.WriteString("\n")

	writeTagSection(&b, "Genres", req.KnownGenres, req.UserGenres, 2)
	writeTagSection(&b, "Topics", req.KnownTopics, req.UserTopics, 3)

	fmt.Fprintf(&b, "Title: %s\n\nText:\n%s\n", req.Title, req.Text)
	return b.String()
}

func writeTagSection(b *strings.Builder, label string, known, user []string, freshMax int) {
	fmt.Fprintf(b, "%s — existing vocabulary: %s\n", label, joinOrNone(known))
	if len(user) > 0 {
		fmt.Fprintf(b, "The author already selected: %s. Re-rank these by relevance to the text instead of replacing them; you may add suggestions up to %d total entries.\n\n", strings.Join(user, ", "), MaxTags)
		return
	}
	fmt.Fprintf(b, "The author selected none: pick 1 to %d ranked entries from the existing vocabulary, most relevant first.\n\n", freshMax)
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(empty)"
	}
	return strings.Join(names, ", ")
}
