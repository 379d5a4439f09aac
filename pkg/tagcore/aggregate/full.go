package aggregate

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/entropia/tagcore/pkg/tagcore/store"
)

var allKinds = []store.Kind{store.KindCategory, store.KindGenre, store.KindTopic, store.KindAuthor}

// Rebuild recomputes every counter from scratch: zero everything, load the
// id -> name registry for each vocabulary kind, scan the whole corpus into
// an accumulator, then persist the result. Idempotent and order-independent,
// so it is safe to run repeatedly as the reconciliation mechanism for any
// drift the incremental path leaves behind.
func Rebuild(ctx context.Context, st store.Store, logger zerolog.Logger) error {
	if err := st.ResetCounters(ctx); err != nil {
		return fmt.Errorf("aggregate: reset: %w", err)
	}

	// The registry guarantees cross-reference entries carry a current name
	// even when one side was renamed since the counts were first written.
	registry := make(map[store.Kind]map[string]string, len(allKinds))
	for _, kind := range allKinds {
		idx, err := st.TagNameIndex(ctx, kind)
		if err != nil {
			return fmt.Errorf("aggregate: name registry %s: %w", kind, err)
		}
		registry[kind] = idx
	}

	acc := NewAccumulator()
	scanned := 0
	err := st.ScanArticles(ctx, func(a store.Article) error {
		acc.Add(DocFromArticle(a))
		scanned++
		return nil
	})
	if err != nil {
		return fmt.Errorf("aggregate: scan: %w", err)
	}
	logger.Info().Int("articles", scanned).Msg("corpus scanned, persisting counters")

	if err := persist(ctx, st, acc, registry); err != nil {
		return err
	}
	return nil
}

func persist(ctx context.Context, st store.Store, acc *Accumulator, registry map[store.Kind]map[string]string) error {
	for key, total := range acc.totals {
		if err := st.SetTotal(ctx, key.kind, key.id, total); err != nil {
			return fmt.Errorf("aggregate: persist total %s %s: %w", key.kind, key.id, err)
		}
	}

	// Group directed pairs by (entity, dimension) and write each table in
	// one replace, filtered to count > 0.
	type tableKey struct {
		kind store.Kind
		id   string
		dim  store.Kind
	}
	tables := make(map[tableKey][]store.CrossRef)
	for key, count := range acc.pairs {
		if count <= 0 {
			continue
		}
		tk := tableKey{kind: key.kind, id: key.id, dim: key.dim}
		tables[tk] = append(tables[tk], store.CrossRef{
			ID:    key.otherID,
			Name:  registryName(registry, key.dim, key.otherID),
			Count: count,
		})
	}

	for tk, refs := range tables {
		if err := st.ReplaceCross(ctx, tk.kind, tk.id, tk.dim, refs); err != nil {
			return fmt.Errorf("aggregate: persist cross %s %s %s: %w", tk.kind, tk.id, tk.dim, err)
		}
	}
	return nil
}

func registryName(registry map[store.Kind]map[string]string, kind store.Kind, id string) string {
	if names, ok := registry[kind]; ok {
		if name, ok := names[id]; ok && name != "" {
			return name
		}
	}
	return kind.Placeholder()
}
