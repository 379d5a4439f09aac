package aggregate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/entropia/tagcore/pkg/tagcore/store"
)

// Ref is an entity reference with the name known at call time. An empty
// name is resolved against the entity's own record, then falls back to a
// kind-specific placeholder.
type Ref struct {
	ID   string
	Name string
}

// ArticleRefs are one article's resolved associations for incremental
// aggregation.
type ArticleRefs struct {
	Categories []Ref
	Genres     []Ref
	Topics     []Ref
	Author     Ref
}

// RefsFromArticle rebuilds an ArticleRefs from a stored article, resolving
// names from the vocabulary. Used on the delete path, where only IDs are at
// hand.
func RefsFromArticle(ctx context.Context, st store.Store, a store.Article) ArticleRefs {
	refs := ArticleRefs{Author: Ref{ID: a.AuthorID, Name: a.AuthorName}}
	for _, id := range a.Categories {
		refs.Categories = append(refs.Categories, Ref{ID: id})
	}
	for _, g := range a.Genres {
		refs.Genres = append(refs.Genres, Ref{ID: g.ID})
	}
	for _, t := range a.Topics {
		refs.Topics = append(refs.Topics, Ref{ID: t.ID})
	}
	return refs
}

// Incremental applies per-article counter deltas. The caller contract is
// one Apply per newly persisted article (delta +1) or per removed article
// (delta -1); applying the same article twice double-counts.
type Incremental struct {
	Store  store.Store
	Logger zerolog.Logger
}

// Apply bumps totalArticles on every referenced entity and the keyed
// cross-reference counter for every cross-dimension pair. Each entity
// update is an independent store operation: the first failure is logged,
// aborts the remaining updates for this call and is returned, without
// rolling back deltas already applied.
func (inc *Incremental) Apply(ctx context.Context, refs ArticleRefs, delta int64) error {
	if delta == 0 {
		return nil
	}

	names := newNameCache(inc.Store)
	dims := refDimensions(refs)

	for _, d := range dims {
		for _, ref := range d.refs {
			if err := inc.Store.IncTotal(ctx, d.kind, ref.ID, delta); err != nil {
				inc.Logger.Error().Err(err).
					Str("kind", string(d.kind)).Str("id", ref.ID).
					Msg("total update failed, aborting remaining counter updates")
				return fmt.Errorf("aggregate: total %s %s: %w", d.kind, ref.ID, err)
			}
		}
	}

	for i := 0; i < len(dims); i++ {
		for j := i + 1; j < len(dims); j++ {
			if err := inc.crossDimension(ctx, names, dims[i], dims[j], delta); err != nil {
				return err
			}
		}
	}
	return nil
}

func (inc *Incremental) crossDimension(ctx context.Context, names *nameCache, a, b refDimension, delta int64) error {
	for _, x := range a.refs {
		for _, y := range b.refs {
			yName := names.resolve(ctx, b.kind, y)
			if err := inc.Store.IncCross(ctx, a.kind, x.ID, b.kind, y.ID, yName, delta); err != nil {
				inc.Logger.Error().Err(err).
					Str("kind", string(a.kind)).Str("id", x.ID).
					Str("dim", string(b.kind)).Str("other", y.ID).
					Msg("cross counter update failed, aborting remaining counter updates")
				return fmt.Errorf("aggregate: cross %s %s -> %s %s: %w", a.kind, x.ID, b.kind, y.ID, err)
			}
			xName := names.resolve(ctx, a.kind, x)
			if err := inc.Store.IncCross(ctx, b.kind, y.ID, a.kind, x.ID, xName, delta); err != nil {
				inc.Logger.Error().Err(err).
					Str("kind", string(b.kind)).Str("id", y.ID).
					Str("dim", string(a.kind)).Str("other", x.ID).
					Msg("cross counter update failed, aborting remaining counter updates")
				return fmt.Errorf("aggregate: cross %s %s -> %s %s: %w", b.kind, y.ID, a.kind, x.ID, err)
			}
		}
	}
	return nil
}

type refDimension struct {
	kind store.Kind
	refs []Ref
}

func refDimensions(refs ArticleRefs) []refDimension {
	dims := []refDimension{
		{kind: store.KindCategory, refs: dedupeRefs(refs.Categories)},
		{kind: store.KindGenre, refs: dedupeRefs(refs.Genres)},
		{kind: store.KindTopic, refs: dedupeRefs(refs.Topics)},
	}
	if refs.Author.ID != "" {
		dims = append(dims, refDimension{kind: store.KindAuthor, refs: []Ref{refs.Author}})
	}
	return dims
}

func dedupeRefs(refs []Ref) []Ref {
	seen := make(map[string]struct{}, len(refs))
	var out []Ref
	for _, r := range refs {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// nameCache resolves display names once per entity per Apply call.
type nameCache struct {
	store store.Store
	known map[entityKey]string
}

func newNameCache(st store.Store) *nameCache {
	return &nameCache{store: st, known: make(map[entityKey]string)}
}

// resolve prefers the name captured at call time, then the entity's own
// record, then the kind placeholder.
func (c *nameCache) resolve(ctx context.Context, kind store.Kind, ref Ref) string {
	if ref.Name != "" {
		return ref.Name
	}
	key := entityKey{kind: kind, id: ref.ID}
	if name, ok := c.known[key]; ok {
		return name
	}
	name := ""
	if entry, found, err := c.store.GetTag(ctx, kind, ref.ID); err == nil && found {
		name = entry.Name
	}
	if name == "" {
		name = kind.Placeholder()
	}
	c.known[key] = name
	return name
}
