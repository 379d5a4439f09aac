package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
	"github.com/entropia/tagcore/pkg/tagcore/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu       sync.RWMutex
	nextTag  int64
	articles map[string]store.Article
	tags     map[tagKey]*store.TagEntry
	tagsByID map[string]*store.TagEntry
	cross    map[crossKey]*crossVal
	series   map[string]store.Series
}

type tagKey struct {
	kind store.Kind
	name string
}

type crossKey struct {
	kind    store.Kind
	id      string
	dim     store.Kind
	otherID string
}

type crossVal struct {
	name  string
	count int64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextTag:  1,
		articles: make(map[string]store.Article),
		tags:     make(map[tagKey]*store.TagEntry),
		tagsByID: make(map[string]*store.TagEntry),
		cross:    make(map[crossKey]*crossVal),
		series:   make(map[string]store.Series),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// InsertArticle stores an article keyed by ID.
func (s *Store) InsertArticle(ctx context.Context, a store.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		return internalerr.ErrInvalidInput
	}
	s.articles[a.ID] = copyArticle(a)
	return nil
}

// GetArticle returns an article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (store.Article, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.articles[id]; ok {
		return copyArticle(a), true, nil
	}
	return store.Article{}, false, nil
}

// DeleteArticle removes an article, returning what was removed.
func (s *Store) DeleteArticle(ctx context.Context, id string) (store.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return store.Article{}, false, nil
	}
	delete(s.articles, id)
	return copyArticle(a), true, nil
}

// ScanArticles visits every stored article in ID order.
func (s *Store) ScanArticles(ctx context.Context, fn func(store.Article) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.articles))
	for id := range s.articles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	snapshot := make([]store.Article, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, copyArticle(s.articles[id]))
	}
	s.mu.RUnlock()

	for _, a := range snapshot {
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

// ResolveTag finds or creates a vocabulary entry by lowercase name.
func (s *Store) ResolveTag(ctx context.Context, kind store.Kind, name string) (store.TagEntry, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return store.TagEntry{}, internalerr.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tagKey{kind: kind, name: name}
	if e, ok := s.tags[key]; ok {
		return *e, nil
	}
	entry := &store.TagEntry{
		ID:   fmt.Sprintf("%s-%d", kind, s.nextTag),
		Kind: kind,
		Name: name,
	}
	s.nextTag++
	s.tags[key] = entry
	s.tagsByID[entry.ID] = entry
	return *entry, nil
}

// GetTag returns a vocabulary entry by ID.
func (s *Store) GetTag(ctx context.Context, kind store.Kind, id string) (store.TagEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tagsByID[id]; ok && e.Kind == kind {
		return *e, true, nil
	}
	return store.TagEntry{}, false, nil
}

// GetTagByName returns a vocabulary entry by lowercase name.
func (s *Store) GetTagByName(ctx context.Context, kind store.Kind, name string) (store.TagEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.tags[tagKey{kind: kind, name: strings.ToLower(name)}]; ok {
		return *e, true, nil
	}
	return store.TagEntry{}, false, nil
}

// TagNames returns all names of one vocabulary kind, sorted.
func (s *Store) TagNames(ctx context.Context, kind store.Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for key := range s.tags {
		if key.kind == kind {
			names = append(names, key.name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// TagNameIndex returns the id -> name map for one vocabulary kind.
func (s *Store) TagNameIndex(ctx context.Context, kind store.Kind) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := make(map[string]string)
	for _, e := range s.tagsByID {
		if e.Kind == kind {
			idx[e.ID] = e.Name
		}
	}
	return idx, nil
}

// IncTotal bumps an entry's totalArticles by delta, clamped at zero.
func (s *Store) IncTotal(ctx context.Context, kind store.Kind, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tagsByID[id]
	if !ok || e.Kind != kind {
		return fmt.Errorf("%w: %s %s", internalerr.ErrNotFound, kind, id)
	}
	e.TotalArticles += delta
	if e.TotalArticles < 0 {
		e.TotalArticles = 0
	}
	return nil
}

// IncCross bumps the keyed cross-reference counter, creating it when missing.
func (s *Store) IncCross(ctx context.Context, kind store.Kind, id string, dim store.Kind, otherID, otherName string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := crossKey{kind: kind, id: id, dim: dim, otherID: otherID}
	if v, ok := s.cross[key]; ok {
		v.count += delta
		if v.count < 0 {
			v.count = 0
		}
		if otherName != "" {
			v.name = otherName
		}
		return nil
	}
	if delta < 0 {
		delta = 0
	}
	s.cross[key] = &crossVal{name: otherName, count: delta}
	return nil
}

// SetTotal overwrites an entry's totalArticles.
func (s *Store) SetTotal(ctx context.Context, kind store.Kind, id string, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tagsByID[id]
	if !ok || e.Kind != kind {
		return fmt.Errorf("%w: %s %s", internalerr.ErrNotFound, kind, id)
	}
	e.TotalArticles = total
	return nil
}

// ReplaceCross swaps one dimension's cross-reference table wholesale.
func (s *Store) ReplaceCross(ctx context.Context, kind store.Kind, id string, dim store.Kind, refs []store.CrossRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cross {
		if key.kind == kind && key.id == id && key.dim == dim {
			delete(s.cross, key)
		}
	}
	for _, ref := range refs {
		s.cross[crossKey{kind: kind, id: id, dim: dim, otherID: ref.ID}] = &crossVal{
			name:  ref.Name,
			count: ref.Count,
		}
	}
	return nil
}

// ResetCounters zeroes every total and drops every cross-reference row.
func (s *Store) ResetCounters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tagsByID {
		e.TotalArticles = 0
	}
	s.cross = make(map[crossKey]*crossVal)
	return nil
}

// CrossCounts returns one dimension's table, omitting zero-count entries.
func (s *Store) CrossCounts(ctx context.Context, kind store.Kind, id string, dim store.Kind) ([]store.CrossRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []store.CrossRef
	for key, v := range s.cross {
		if key.kind == kind && key.id == id && key.dim == dim && v.count > 0 {
			refs = append(refs, store.CrossRef{ID: key.otherID, Name: v.name, Count: v.count})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// CreateSeriesWithChapter inserts the series and its first chapter together.
func (s *Store) CreateSeriesWithChapter(ctx context.Context, sr store.Series, first store.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr.ID == "" || first.ID == "" {
		return internalerr.ErrInvalidInput
	}
	sr.Chapters = []string{first.ID}
	sr.TotalChapters = 1
	s.series[sr.ID] = copySeries(sr)
	s.articles[first.ID] = copyArticle(first)
	return nil
}

// GetSeries returns a series by ID.
func (s *Store) GetSeries(ctx context.Context, id string) (store.Series, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sr, ok := s.series[id]; ok {
		return copySeries(sr), true, nil
	}
	return store.Series{}, false, nil
}

// AppendChapter adds an article to a series and bumps totalChapters.
func (s *Store) AppendChapter(ctx context.Context, seriesID, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.series[seriesID]
	if !ok {
		return fmt.Errorf("%w: series %s", internalerr.ErrNotFound, seriesID)
	}
	sr.Chapters = append(sr.Chapters, articleID)
	sr.TotalChapters = len(sr.Chapters)
	s.series[seriesID] = sr
	return nil
}

func copyArticle(a store.Article) store.Article {
	out := a
	out.Categories = append([]string(nil), a.Categories...)
	out.Genres = append([]store.TagRef(nil), a.Genres...)
	out.Topics = append([]store.TagRef(nil), a.Topics...)
	out.Embedding = append([]float32(nil), a.Embedding...)
	return out
}

func copySeries(s store.Series) store.Series {
	out := s
	out.Chapters = append([]string(nil), s.Chapters...)
	return out
}
