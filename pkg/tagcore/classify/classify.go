// Package classify derives a description and a ranked, size-bounded set of
// genre and topic tags for a piece of text, reconciling the language model's
// suggestions against the controlled vocabulary and the author's own picks.
package classify

import (
	"context"
	"fmt"
	"strings"
)

// MaxTags caps each of the genre and topic lists per article.
const MaxTags = 3

// Sentinel defaults guarantee every article carries at least one genre and
// one topic even when classification yields nothing usable.
const (
	DefaultGenre = "non-classificato"
	DefaultTopic = "generale"
)

// TextGenerator is the text-generation collaborator. The reply is loosely
// structured text expected to contain one JSON object.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Embedder is the embedding collaborator, returning a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request carries everything the classifier needs for one article.
// UserGenres and UserTopics are already lowercase-normalized.
type Request struct {
	Title        string
	Text         string
	KnownGenres  []string
	KnownTopics  []string
	UserGenres   []string
	UserTopics   []string
	AllowNewTags bool
}

// Result is the classifier's output. Genres and Topics hold 1 to 3 entries
// each, in relevance order. NewGenres and NewTopics list the accepted
// new-vocabulary proposals that made it into the final selection.
type Result struct {
	Description string
	Genres      []string
	Topics      []string
	Embedding   []float32
	NewGenres   []string
	NewTopics   []string
}

// Classifier orchestrates one classification call.
type Classifier struct {
	Generator   TextGenerator
	Embedder    Embedder
	Temperature float64
}

// Classify runs the model, parses and sanitizes its reply, merges the AI
// ranking with the user's selections, and embeds the text. Generator,
// embedder and parse failures all propagate; the caller decides whether an
// article can be published without enrichment.
func (c *Classifier) Classify(ctx context.Context, req Request) (Result, error) {
	if c.Generator == nil {
		return Result{}, fmt.Errorf("classify: no text generator configured")
	}

	temp := c.Temperature
	if temp <= 0 {
		temp = 0.7
	}

	reply, err := c.Generator.Generate(ctx, BuildPrompt(req), temp)
	if err != nil {
		return Result{}, fmt.Errorf("classify: generate: %w", err)
	}

	parsed, err := ParseReply(reply)
	if err != nil {
		return Result{}, err
	}

	genres, newGenres := sanitizeTags(parsed.Generi, req.AllowNewTags)
	topics, newTopics := sanitizeTags(parsed.Topics, req.AllowNewTags)

	if len(req.UserGenres) > 0 {
		genres = RearrangeByAIPreference(req.UserGenres, genres)
	}
	if len(req.UserTopics) > 0 {
		topics = RearrangeByAIPreference(req.UserTopics, topics)
	}

	genres = capTags(genres)
	topics = capTags(topics)

	if len(genres) == 0 {
		genres = []string{DefaultGenre}
	}
	if len(topics) == 0 {
		topics = []string{DefaultTopic}
	}

	res := Result{
		Description: strings.TrimSpace(parsed.Description),
		Genres:      genres,
		Topics:      topics,
		NewGenres:   retained(newGenres, genres),
		NewTopics:   retained(newTopics, topics),
	}

	if c.Embedder != nil {
		emb, err := c.Embedder.Embed(ctx, req.Text)
		if err != nil {
			return Result{}, fmt.Errorf("classify: embed: %w", err)
		}
		res.Embedding = emb
	}

	return res, nil
}

// sanitizeTags normalizes the model's raw tag strings: the `*` prefix marks
// a new-vocabulary proposal, honored only when allowNew is set and discarded
// silently otherwise. Everything is trimmed, lowercased and deduplicated in
// rank order.
func sanitizeTags(raw []string, allowNew bool) (tags, proposals []string) {
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		isNew := strings.HasPrefix(s, "*")
		if isNew {
			if !allowNew {
				continue
			}
			s = strings.TrimPrefix(s, "*")
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		tags = append(tags, s)
		if isNew {
			proposals = append(proposals, s)
		}
	}
	return tags, proposals
}

func capTags(tags []string) []string {
	if len(tags) > MaxTags {
		return tags[:MaxTags]
	}
	return tags
}

// retained filters proposals to those that survived into the final list, so
// vocabulary entries are only minted for tags an article actually carries.
func retained(proposals, final []string) []string {
	set := make(map[string]struct{}, len(final))
	for _, t := range final {
		set[t] = struct{}{}
	}
	var out []string
	for _, p := range proposals {
		if _, ok := set[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
