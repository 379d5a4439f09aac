// Package aggregate keeps each vocabulary entry's totalArticles and
// cross-reference tables consistent with the article corpus, either by full
// recomputation or by per-article delta application.
package aggregate

import (
	"github.com/entropia/tagcore/pkg/tagcore/store"
	"github.com/entropia/tagcore/pkg/tagcore/vocab"
)

// Doc is one article's tag associations as fed to the accumulator. Genre and
// topic references may appear in either historical shape (bare id string or
// {id, relevance}); both normalize to the same identifier.
type Doc struct {
	Categories []any
	Genres     []any
	Topics     []any
	AuthorID   string
}

// DocFromArticle adapts a stored article for accumulation.
func DocFromArticle(a store.Article) Doc {
	d := Doc{AuthorID: a.AuthorID}
	for _, c := range a.Categories {
		d.Categories = append(d.Categories, c)
	}
	for _, g := range a.Genres {
		d.Genres = append(d.Genres, g)
	}
	for _, t := range a.Topics {
		d.Topics = append(d.Topics, t)
	}
	return d
}

type entityKey struct {
	kind store.Kind
	id   string
}

type pairKey struct {
	kind    store.Kind
	id      string
	dim     store.Kind
	otherID string
}

// Accumulator builds per-entity totals and cross-dimension co-occurrence
// counts across an article corpus. Feeding order does not matter.
type Accumulator struct {
	totals map[entityKey]int64
	pairs  map[pairKey]int64
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		totals: make(map[entityKey]int64),
		pairs:  make(map[pairKey]int64),
	}
}

// Add accumulates one article's associations.
func (a *Accumulator) Add(doc Doc) {
	dims := docDimensions(doc)

	for _, d := range dims {
		for _, id := range d.ids {
			a.totals[entityKey{kind: d.kind, id: id}]++
		}
	}

	// Every cross-dimension pair counts on both sides.
	for i := 0; i < len(dims); i++ {
		for j := i + 1; j < len(dims); j++ {
			for _, x := range dims[i].ids {
				for _, y := range dims[j].ids {
					a.pairs[pairKey{kind: dims[i].kind, id: x, dim: dims[j].kind, otherID: y}]++
					a.pairs[pairKey{kind: dims[j].kind, id: y, dim: dims[i].kind, otherID: x}]++
				}
			}
		}
	}
}

// Total returns the accumulated article total for one entity.
func (a *Accumulator) Total(kind store.Kind, id string) int64 {
	return a.totals[entityKey{kind: kind, id: id}]
}

// Pair returns the accumulated co-occurrence count for one directed pair.
func (a *Accumulator) Pair(kind store.Kind, id string, dim store.Kind, otherID string) int64 {
	return a.pairs[pairKey{kind: kind, id: id, dim: dim, otherID: otherID}]
}

type dimension struct {
	kind store.Kind
	ids  []string
}

func docDimensions(doc Doc) []dimension {
	dims := []dimension{
		{kind: store.KindCategory, ids: uniqueIDs(doc.Categories)},
		{kind: store.KindGenre, ids: uniqueIDs(doc.Genres)},
		{kind: store.KindTopic, ids: uniqueIDs(doc.Topics)},
	}
	if doc.AuthorID != "" {
		dims = append(dims, dimension{kind: store.KindAuthor, ids: []string{doc.AuthorID}})
	}
	return dims
}

func uniqueIDs(refs []any) []string {
	seen := make(map[string]struct{}, len(refs))
	var out []string
	for _, id := range vocab.NormalizeRefs(refs) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
