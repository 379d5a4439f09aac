package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
	"github.com/entropia/tagcore/pkg/tagcore/store"
)

func openTest(t *testing.T) store.Store {
	t.Helper()
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestArticleRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	a := store.Article{
		ID:           "art-1",
		Title:        "Il faro",
		BodyLocator:  "blobs/art-1.txt",
		AuthorID:     "42",
		AuthorName:   "marea",
		Categories:   []string{"7", "9"},
		Genres:       []store.TagRef{{ID: "11", Relevance: 1}, {ID: "12", Relevance: 2}},
		Topics:       []store.TagRef{{ID: "21", Relevance: 1}},
		SeriesID:     "",
		ChapterIndex: 0,
		Description:  "Una storia di mare.",
		Embedding:    []float32{0.25, -0.5},
		CreatedAt:    time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	if err := st.InsertArticle(ctx, a); err != nil {
		t.Fatalf("InsertArticle: %v", err)
	}

	got, found, err := st.GetArticle(ctx, "art-1")
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if !found {
		t.Fatal("article should be found")
	}
	if got.Title != a.Title || got.AuthorName != a.AuthorName || got.Description != a.Description {
		t.Errorf("scalar fields mismatch: %+v", got)
	}
	if len(got.Categories) != 2 || got.Categories[0] != "7" || got.Categories[1] != "9" {
		t.Errorf("categories = %v, want position order", got.Categories)
	}
	if len(got.Genres) != 2 || got.Genres[0].ID != "11" || got.Genres[1].Relevance != 2 {
		t.Errorf("genres = %v", got.Genres)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != -0.5 {
		t.Errorf("embedding = %v", got.Embedding)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}

	if _, found, _ := st.GetArticle(ctx, "missing"); found {
		t.Error("missing article reported found")
	}
}

func TestDeleteArticleReturnsRemoved(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	a := store.Article{
		ID:       "art-1",
		Title:    "Prima",
		AuthorID: "1",
		Genres:   []store.TagRef{{ID: "11", Relevance: 1}},
	}
	if err := st.InsertArticle(ctx, a); err != nil {
		t.Fatal(err)
	}

	removed, found, err := st.DeleteArticle(ctx, "art-1")
	if err != nil {
		t.Fatalf("DeleteArticle: %v", err)
	}
	if !found || removed.Title != "Prima" || len(removed.Genres) != 1 {
		t.Errorf("removed = %+v found=%v", removed, found)
	}

	if _, found, _ := st.GetArticle(ctx, "art-1"); found {
		t.Error("article still present after delete")
	}
	if _, found, _ := st.DeleteArticle(ctx, "art-1"); found {
		t.Error("second delete reported found")
	}
}

func TestResolveTagUpsert(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	first, err := st.ResolveTag(ctx, store.KindGenre, "Fantasy")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if first.Name != "fantasy" || first.ID == "" {
		t.Errorf("entry = %+v", first)
	}

	second, err := st.ResolveTag(ctx, store.KindGenre, " fantasy ")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("resolve minted a duplicate id: %q vs %q", second.ID, first.ID)
	}

	otherKind, err := st.ResolveTag(ctx, store.KindTopic, "fantasy")
	if err != nil {
		t.Fatal(err)
	}
	if otherKind.ID == first.ID {
		t.Error("kinds share an entry")
	}

	if _, err := st.ResolveTag(ctx, store.KindGenre, "  "); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("blank name err = %v", err)
	}
}

// TestResolveTagConcurrent hammers the same name from many goroutines; the
// upsert must hand every caller the same id.
func TestResolveTagConcurrent(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := st.ResolveTag(ctx, store.KindTopic, "mare")
			ids[i] = entry.ID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("duplicate entries minted: %v", ids)
		}
	}

	names, err := st.TagNames(ctx, store.KindTopic)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 {
		t.Errorf("names = %v, want exactly one", names)
	}
}

func TestIncTotal(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)
	entry, _ := st.ResolveTag(ctx, store.KindGenre, "noir")

	if err := st.IncTotal(ctx, store.KindGenre, entry.ID, 2); err != nil {
		t.Fatal(err)
	}
	if err := st.IncTotal(ctx, store.KindGenre, entry.ID, -5); err != nil {
		t.Fatal(err)
	}
	got, _, _ := st.GetTag(ctx, store.KindGenre, entry.ID)
	if got.TotalArticles != 0 {
		t.Errorf("total = %d, want clamp at 0", got.TotalArticles)
	}

	if err := st.IncTotal(ctx, store.KindGenre, "99999", 1); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
}

func TestIncCrossUpsert(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	// First write creates the row, second bumps it.
	if err := st.IncCross(ctx, store.KindGenre, "g1", store.KindTopic, "t1", "mare", 1); err != nil {
		t.Fatal(err)
	}
	if err := st.IncCross(ctx, store.KindGenre, "g1", store.KindTopic, "t1", "", 1); err != nil {
		t.Fatal(err)
	}

	refs, err := st.CrossCounts(ctx, store.KindGenre, "g1", store.KindTopic)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].Count != 2 {
		t.Fatalf("refs = %v, want one row with count 2", refs)
	}
	if refs[0].Name != "mare" {
		t.Errorf("empty otherName overwrote the stored name: %q", refs[0].Name)
	}

	// A later write with a name refreshes it.
	if err := st.IncCross(ctx, store.KindGenre, "g1", store.KindTopic, "t1", "alto mare", 1); err != nil {
		t.Fatal(err)
	}
	refs, _ = st.CrossCounts(ctx, store.KindGenre, "g1", store.KindTopic)
	if refs[0].Name != "alto mare" {
		t.Errorf("name = %q, want refresh", refs[0].Name)
	}

	// Decrements clamp at zero and zero rows vanish from reads.
	if err := st.IncCross(ctx, store.KindGenre, "g1", store.KindTopic, "t1", "", -10); err != nil {
		t.Fatal(err)
	}
	refs, _ = st.CrossCounts(ctx, store.KindGenre, "g1", store.KindTopic)
	if len(refs) != 0 {
		t.Errorf("refs = %v, want empty after clamp", refs)
	}
}

func TestReplaceCrossAndReset(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)
	entry, _ := st.ResolveTag(ctx, store.KindCategory, "racconti")

	if err := st.SetTotal(ctx, store.KindCategory, entry.ID, 5); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceCross(ctx, store.KindCategory, entry.ID, store.KindGenre, []store.CrossRef{
		{ID: "g1", Name: "fantasy", Count: 3},
		{ID: "g2", Name: "noir", Count: 2},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.ReplaceCross(ctx, store.KindCategory, entry.ID, store.KindGenre, []store.CrossRef{
		{ID: "g3", Name: "lirico", Count: 1},
	}); err != nil {
		t.Fatal(err)
	}

	refs, _ := st.CrossCounts(ctx, store.KindCategory, entry.ID, store.KindGenre)
	if len(refs) != 1 || refs[0].ID != "g3" {
		t.Errorf("replace left stale rows: %v", refs)
	}

	if err := st.ResetCounters(ctx); err != nil {
		t.Fatal(err)
	}
	got, _, _ := st.GetTag(ctx, store.KindCategory, entry.ID)
	if got.TotalArticles != 0 {
		t.Errorf("total = %d after reset", got.TotalArticles)
	}
	refs, _ = st.CrossCounts(ctx, store.KindCategory, entry.ID, store.KindGenre)
	if len(refs) != 0 {
		t.Errorf("cross rows survived reset: %v", refs)
	}
}

func TestScanArticles(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	for _, id := range []string{"b", "a", "c"} {
		if err := st.InsertArticle(ctx, store.Article{ID: id, Title: id, AuthorID: "1"}); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	if err := st.ScanArticles(ctx, func(a store.Article) error {
		seen = append(seen, a.ID)
		return nil
	}); err != nil {
		t.Fatalf("ScanArticles: %v", err)
	}
	if len(seen) != 3 || seen[0] != "a" || seen[2] != "c" {
		t.Errorf("scan order = %v", seen)
	}

	stop := errors.New("stop")
	if err := st.ScanArticles(ctx, func(store.Article) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("callback error not surfaced: %v", err)
	}
}

func TestSeriesLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	sr := store.Series{ID: "ser-1", Title: "Le cronache", AuthorID: "42", AuthorName: "marea"}
	first := store.Article{ID: "art-1", Title: "Capitolo uno", AuthorID: "42", SeriesID: "ser-1", ChapterIndex: 1}
	if err := st.CreateSeriesWithChapter(ctx, sr, first); err != nil {
		t.Fatalf("CreateSeriesWithChapter: %v", err)
	}

	got, found, err := st.GetSeries(ctx, "ser-1")
	if err != nil || !found {
		t.Fatalf("GetSeries: found=%v err=%v", found, err)
	}
	if got.TotalChapters != 1 || len(got.Chapters) != 1 || got.Chapters[0] != "art-1" {
		t.Errorf("series = %+v", got)
	}
	if _, found, _ := st.GetArticle(ctx, "art-1"); !found {
		t.Fatal("first chapter article missing; the insert is transactional")
	}

	second := store.Article{ID: "art-2", Title: "Capitolo due", AuthorID: "42", SeriesID: "ser-1", ChapterIndex: 2}
	if err := st.InsertArticle(ctx, second); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendChapter(ctx, "ser-1", "art-2"); err != nil {
		t.Fatalf("AppendChapter: %v", err)
	}

	got, _, _ = st.GetSeries(ctx, "ser-1")
	if got.TotalChapters != 2 || len(got.Chapters) != 2 || got.Chapters[1] != "art-2" {
		t.Errorf("series after append = %+v", got)
	}

	if err := st.AppendChapter(ctx, "missing", "art-2"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("append to missing series err = %v", err)
	}
}

func TestSeriesCreateRejectsEmptyIDs(t *testing.T) {
	ctx := context.Background()
	st := openTest(t)

	err := st.CreateSeriesWithChapter(ctx, store.Series{}, store.Article{ID: "a"})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
