// Package vocab maps tag name strings to persisted vocabulary identities and
// normalizes the tag-reference shapes found in stored articles.
package vocab

import (
	"context"
	"fmt"
	"strings"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
	"github.com/entropia/tagcore/pkg/tagcore/store"
)

// Resolver maps lowercase tag names to vocabulary entries, creating genre,
// topic and author entries on demand. Categories are a closed set: they are
// looked up, never minted.
type Resolver struct {
	Store store.Store
}

// Resolve returns the entry for a name, creating it when the kind is
// open-ended. The find-or-insert runs as one atomic store operation, so a
// duplicate-name race between two creators yields a single entry.
func (r *Resolver) Resolve(ctx context.Context, kind store.Kind, name string) (store.TagEntry, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return store.TagEntry{}, fmt.Errorf("%w: empty tag name", internalerr.ErrInvalidInput)
	}

	if kind == store.KindCategory {
		entry, found, err := r.Store.GetTagByName(ctx, kind, name)
		if err != nil {
			return store.TagEntry{}, err
		}
		if !found {
			return store.TagEntry{}, fmt.Errorf("%w: unknown category %q", internalerr.ErrInvalidInput, name)
		}
		return entry, nil
	}

	return r.Store.ResolveTag(ctx, kind, name)
}

// ResolveAll resolves an ordered name list, preserving order.
func (r *Resolver) ResolveAll(ctx context.Context, kind store.Kind, names []string) ([]store.TagEntry, error) {
	entries := make([]store.TagEntry, 0, len(names))
	for _, name := range names {
		entry, err := r.Resolve(ctx, kind, name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// NormalizeRef reduces the two historical tag-reference shapes to an ID
// string: a bare identifier, or a {id, relevance} pair (as store.TagRef or
// as a decoded JSON map). Unknown shapes normalize to the empty string.
func NormalizeRef(ref any) string {
	switch v := ref.(type) {
	case string:
		return v
	case store.TagRef:
		return v.ID
	case *store.TagRef:
		if v == nil {
			return ""
		}
		return v.ID
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

// NormalizeRefs maps a mixed-shape reference list to ID strings, dropping
// entries that do not normalize.
func NormalizeRefs(refs []any) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := NormalizeRef(ref); id != "" {
			out = append(out, id)
		}
	}
	return out
}
