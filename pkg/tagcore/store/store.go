package store

import (
	"context"
	"time"
)

// Kind identifies a vocabulary dimension.
type Kind string

const (
	KindCategory Kind = "category"
	KindGenre    Kind = "genre"
	KindTopic    Kind = "topic"
	KindAuthor   Kind = "author"
)

// Placeholder returns the fallback display name used when a cross-reference
// entry must be written before the other side's name is known.
func (k Kind) Placeholder() string {
	switch k {
	case KindCategory:
		return "categoria"
	case KindGenre:
		return "genere"
	case KindTopic:
		return "topic"
	case KindAuthor:
		return "autore"
	}
	return "voce"
}

// Store is the main interface for persisting and querying platform data
type Store interface {
	Close() error

	// Articles
	InsertArticle(ctx context.Context, a Article) error
	GetArticle(ctx context.Context, id string) (Article, bool, error)
	DeleteArticle(ctx context.Context, id string) (Article, bool, error)
	ScanArticles(ctx context.Context, fn func(Article) error) error

	// Vocabulary
	// ResolveTag finds a vocabulary entry by lowercase name, creating it with
	// zero counters when absent. The lookup and insert are a single atomic
	// operation keyed on the (kind, name) unique index.
	ResolveTag(ctx context.Context, kind Kind, name string) (TagEntry, error)
	GetTag(ctx context.Context, kind Kind, id string) (TagEntry, bool, error)
	GetTagByName(ctx context.Context, kind Kind, name string) (TagEntry, bool, error)
	TagNames(ctx context.Context, kind Kind) ([]string, error)
	TagNameIndex(ctx context.Context, kind Kind) (map[string]string, error)

	// Counters
	IncTotal(ctx context.Context, kind Kind, id string, delta int64) error
	// IncCross atomically bumps the keyed cross-reference counter
	// (kind,id,dim,otherID), inserting it with the given name when missing.
	IncCross(ctx context.Context, kind Kind, id string, dim Kind, otherID, otherName string, delta int64) error
	SetTotal(ctx context.Context, kind Kind, id string, total int64) error
	ReplaceCross(ctx context.Context, kind Kind, id string, dim Kind, refs []CrossRef) error
	ResetCounters(ctx context.Context) error
	// CrossCounts returns the {id,name,count} table for one dimension,
	// omitting stale zero-count entries.
	CrossCounts(ctx context.Context, kind Kind, id string, dim Kind) ([]CrossRef, error)

	// Series
	// CreateSeriesWithChapter inserts the series and its first chapter in one
	// transaction. Counter aggregation happens outside of it.
	CreateSeriesWithChapter(ctx context.Context, s Series, first Article) error
	GetSeries(ctx context.Context, id string) (Series, bool, error)
	AppendChapter(ctx context.Context, seriesID, articleID string) error
}

// TagRef associates an article with a genre or topic entry.
// Relevance is a 1-based rank, 1 = most relevant, unique within its list.
type TagRef struct {
	ID        string
	Relevance int
}

// Article is a stored, fully classified article.
type Article struct {
	ID           string
	Title        string
	BodyLocator  string
	AuthorID     string
	AuthorName   string
	Categories   []string
	Genres       []TagRef
	Topics       []TagRef
	SeriesID     string
	ChapterIndex int
	Description  string
	Embedding    []float32
	CreatedAt    time.Time
}

// TagEntry is a controlled-vocabulary entry with its article total.
// Cross-reference tables live in keyed counter rows, read via CrossCounts.
type TagEntry struct {
	ID            string
	Kind          Kind
	Name          string
	TotalArticles int64
}

// CrossRef records how many articles carry both this entity and the
// referenced one.
type CrossRef struct {
	ID    string
	Name  string
	Count int64
}

// Series groups chapter articles under one title.
type Series struct {
	ID            string
	Title         string
	AuthorID      string
	AuthorName    string
	Chapters      []string
	TotalChapters int
	Completed     bool
}
