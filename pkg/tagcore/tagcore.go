// Package tagcore is the classification and counter-aggregation core of the
// Entropia publishing platform: it turns an article draft into a persisted,
// tagged article and keeps the vocabulary's denormalized co-occurrence
// counters in step with the corpus.
package tagcore

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/entropia/tagcore/pkg/tagcore/aggregate"
	"github.com/entropia/tagcore/pkg/tagcore/classify"
	"github.com/entropia/tagcore/pkg/tagcore/extract"
	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
	"github.com/entropia/tagcore/pkg/tagcore/store"
	"github.com/entropia/tagcore/pkg/tagcore/vocab"
)

// Engine is the main pipeline facade
type Engine struct {
	store      store.Store
	extractor  *extract.Extractor
	classifier *classify.Classifier
	resolver   vocab.Resolver
	inc        aggregate.Incremental
	categories []string
	logger     zerolog.Logger
	entropy    *ulid.MonotonicEntropy
}

// Options configures an Engine instance
type Options struct {
	Store      store.Store
	Extractor  *extract.Extractor
	Classifier *classify.Classifier
	// Categories is the closed, predefined category vocabulary. Seed it
	// into the store with SeedCategories before publishing.
	Categories []string
	Logger     zerolog.Logger
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	return &Engine{
		store:      opts.Store,
		extractor:  opts.Extractor,
		classifier: opts.Classifier,
		resolver:   vocab.Resolver{Store: opts.Store},
		inc:        aggregate.Incremental{Store: opts.Store, Logger: opts.Logger},
		categories: opts.Categories,
		logger:     opts.Logger,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the engine
func (e *Engine) Close() error {
	return e.store.Close()
}

// SeedCategories inserts the closed category set. Categories are never
// minted from free text, only from this predefined list.
func (e *Engine) SeedCategories(ctx context.Context) error {
	for _, name := range e.categories {
		if _, err := e.store.ResolveTag(ctx, store.KindCategory, name); err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}

// Draft is an article as submitted by its author. Tag lists hold lowercase
// names; Categories must come from the closed set.
type Draft struct {
	Title        string
	Text         string
	BodyLocator  string
	Author       string // stable author handle
	AuthorName   string // display name
	Categories   []string
	Genres       []string
	Topics       []string
	AllowNewTags bool
}

// SeriesDraft creates a series together with its first chapter.
type SeriesDraft struct {
	Title string
	First Draft
}

// PublishArticle runs the full pipeline: extract, classify, resolve tags to
// vocabulary identities, persist, then apply the incremental counter delta.
// A classifier failure never aborts publication: the article proceeds with
// the author's tags (or the sentinel defaults) and no description or
// embedding. A counter failure is logged but does not fail the publish; the
// full recompute is the reconciliation mechanism for any resulting drift.
func (e *Engine) PublishArticle(ctx context.Context, d Draft) (store.Article, error) {
	article, refs, err := e.prepare(ctx, d)
	if err != nil {
		return store.Article{}, err
	}

	article.ID = e.newID()
	article.CreatedAt = time.Now().UTC()
	if err := e.store.InsertArticle(ctx, article); err != nil {
		return store.Article{}, fmt.Errorf("persist article: %w", err)
	}

	e.applyCounters(ctx, article.ID, refs, 1)
	return article, nil
}

// CreateSeries creates a series and its first chapter atomically, then
// applies the chapter's counter delta outside the transaction.
func (e *Engine) CreateSeries(ctx context.Context, d SeriesDraft) (store.Series, store.Article, error) {
	article, refs, err := e.prepare(ctx, d.First)
	if err != nil {
		return store.Series{}, store.Article{}, err
	}

	series := store.Series{
		ID:         e.newID(),
		Title:      d.Title,
		AuthorID:   article.AuthorID,
		AuthorName: article.AuthorName,
	}
	article.ID = e.newID()
	article.CreatedAt = time.Now().UTC()
	article.SeriesID = series.ID
	article.ChapterIndex = 1

	if err := e.store.CreateSeriesWithChapter(ctx, series, article); err != nil {
		return store.Series{}, store.Article{}, fmt.Errorf("persist series: %w", err)
	}
	series.Chapters = []string{article.ID}
	series.TotalChapters = 1

	e.applyCounters(ctx, article.ID, refs, 1)
	return series, article, nil
}

// AddChapter publishes an article as the next chapter of an existing series.
func (e *Engine) AddChapter(ctx context.Context, seriesID string, d Draft) (store.Article, error) {
	series, found, err := e.store.GetSeries(ctx, seriesID)
	if err != nil {
		return store.Article{}, err
	}
	if !found {
		return store.Article{}, fmt.Errorf("%w: series %s", internalerr.ErrNotFound, seriesID)
	}

	article, refs, err := e.prepare(ctx, d)
	if err != nil {
		return store.Article{}, err
	}

	article.ID = e.newID()
	article.CreatedAt = time.Now().UTC()
	article.SeriesID = seriesID
	article.ChapterIndex = series.TotalChapters + 1

	if err := e.store.InsertArticle(ctx, article); err != nil {
		return store.Article{}, fmt.Errorf("persist chapter: %w", err)
	}
	if err := e.store.AppendChapter(ctx, seriesID, article.ID); err != nil {
		return store.Article{}, fmt.Errorf("append chapter: %w", err)
	}

	e.applyCounters(ctx, article.ID, refs, 1)
	return article, nil
}

// DeleteArticle removes an article and applies the counter delta in reverse.
func (e *Engine) DeleteArticle(ctx context.Context, id string) error {
	article, found, err := e.store.DeleteArticle(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: article %s", internalerr.ErrNotFound, id)
	}

	refs := aggregate.RefsFromArticle(ctx, e.store, article)
	if err := e.inc.Apply(ctx, refs, -1); err != nil {
		e.logger.Error().Err(err).Str("article", id).Msg("counter rollback incomplete after delete")
	}
	return nil
}

// RebuildCounters recomputes every counter from the full corpus.
func (e *Engine) RebuildCounters(ctx context.Context) error {
	return aggregate.Rebuild(ctx, e.store, e.logger)
}

// prepare runs extraction, classification and vocabulary resolution for a
// draft, returning the unsaved article and its counter references.
func (e *Engine) prepare(ctx context.Context, d Draft) (store.Article, aggregate.ArticleRefs, error) {
	if d.Author == "" {
		return store.Article{}, aggregate.ArticleRefs{}, fmt.Errorf("%w: author required", internalerr.ErrInvalidInput)
	}

	text, err := e.extractor.Extract(ctx, extract.Input{Text: d.Text, Locator: d.BodyLocator})
	if err != nil {
		return store.Article{}, aggregate.ArticleRefs{}, err
	}

	result := e.classifyDraft(ctx, d, text)

	article := store.Article{
		Title:       d.Title,
		BodyLocator: d.BodyLocator,
		AuthorName:  d.AuthorName,
		Description: result.Description,
		Embedding:   result.Embedding,
	}
	if article.AuthorName == "" {
		article.AuthorName = d.Author
	}
	refs := aggregate.ArticleRefs{}

	author, err := e.resolver.Resolve(ctx, store.KindAuthor, d.Author)
	if err != nil {
		return store.Article{}, aggregate.ArticleRefs{}, err
	}
	article.AuthorID = author.ID
	refs.Author = aggregate.Ref{ID: author.ID, Name: article.AuthorName}

	cats, err := e.resolver.ResolveAll(ctx, store.KindCategory, d.Categories)
	if err != nil {
		return store.Article{}, aggregate.ArticleRefs{}, err
	}
	for _, c := range cats {
		article.Categories = append(article.Categories, c.ID)
		refs.Categories = append(refs.Categories, aggregate.Ref{ID: c.ID, Name: c.Name})
	}

	article.Genres, refs.Genres, err = e.resolveRanked(ctx, store.KindGenre, result.Genres)
	if err != nil {
		return store.Article{}, aggregate.ArticleRefs{}, err
	}
	article.Topics, refs.Topics, err = e.resolveRanked(ctx, store.KindTopic, result.Topics)
	if err != nil {
		return store.Article{}, aggregate.ArticleRefs{}, err
	}

	return article, refs, nil
}

// classifyDraft calls the classifier and falls back to the author's own
// selections when it fails.
func (e *Engine) classifyDraft(ctx context.Context, d Draft, text string) classify.Result {
	req := classify.Request{
		Title:        d.Title,
		Text:         text,
		UserGenres:   d.Genres,
		UserTopics:   d.Topics,
		AllowNewTags: d.AllowNewTags,
	}

	var err error
	req.KnownGenres, err = e.store.TagNames(ctx, store.KindGenre)
	if err == nil {
		req.KnownTopics, err = e.store.TagNames(ctx, store.KindTopic)
	}
	if err == nil && e.classifier != nil {
		var result classify.Result
		result, err = e.classifier.Classify(ctx, req)
		if err == nil {
			return result
		}
	}

	if err != nil {
		e.logger.Warn().Err(err).Str("title", d.Title).Msg("classification failed, publishing without AI enrichment")
	}

	fallback := classify.Result{
		Genres: append([]string(nil), d.Genres...),
		Topics: append([]string(nil), d.Topics...),
	}
	if len(fallback.Genres) == 0 {
		fallback.Genres = []string{classify.DefaultGenre}
	}
	if len(fallback.Topics) == 0 {
		fallback.Topics = []string{classify.DefaultTopic}
	}
	return fallback
}

// resolveRanked maps final tag names to vocabulary identities, assigning
// 1-based relevance from the final order.
func (e *Engine) resolveRanked(ctx context.Context, kind store.Kind, names []string) ([]store.TagRef, []aggregate.Ref, error) {
	entries, err := e.resolver.ResolveAll(ctx, kind, names)
	if err != nil {
		return nil, nil, err
	}
	tagRefs := make([]store.TagRef, 0, len(entries))
	aggRefs := make([]aggregate.Ref, 0, len(entries))
	for i, entry := range entries {
		tagRefs = append(tagRefs, store.TagRef{ID: entry.ID, Relevance: i + 1})
		aggRefs = append(aggRefs, aggregate.Ref{ID: entry.ID, Name: entry.Name})
	}
	return tagRefs, aggRefs, nil
}

// applyCounters runs the incremental aggregation. Failures leave the
// counters partially updated and are logged, not returned: the article
// write already succeeded and read-side facet counts favor availability.
func (e *Engine) applyCounters(ctx context.Context, articleID string, refs aggregate.ArticleRefs, delta int64) {
	if err := e.inc.Apply(ctx, refs, delta); err != nil {
		e.logger.Error().Err(err).Str("article", articleID).Msg("counter aggregation incomplete")
	}
}

func (e *Engine) newID() string {
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}
