package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/entropia/tagcore/pkg/tagcore/internalerr"
	"github.com/entropia/tagcore/pkg/tagcore/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and the schema applied.
func Open(ctx context.Context, path string) (store.Store, error) {
	// The pragmas ride on the DSN so every pooled connection gets them:
	// WAL for concurrent readers, a busy timeout so concurrent counter
	// upserts wait for the write lock instead of failing with SQLITE_BUSY.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	body_locator TEXT,
	author_id TEXT NOT NULL,
	author_name TEXT,
	series_id TEXT,
	chapter_index INTEGER DEFAULT 0,
	description TEXT,
	embedding TEXT,
	created_at TEXT
);

CREATE TABLE IF NOT EXISTS article_categories (
	article_id TEXT NOT NULL,
	category_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(article_id, category_id),
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS article_tags (
	article_id TEXT NOT NULL,
	dim TEXT NOT NULL,
	tag_id TEXT NOT NULL,
	relevance INTEGER NOT NULL,
	UNIQUE(article_id, dim, tag_id),
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS vocab (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	total_articles INTEGER NOT NULL DEFAULT 0,
	UNIQUE(kind, name)
);

CREATE TABLE IF NOT EXISTS cross_counts (
	kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	dim TEXT NOT NULL,
	other_id TEXT NOT NULL,
	other_name TEXT,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(kind, entity_id, dim, other_id)
);

CREATE TABLE IF NOT EXISTS series (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_name TEXT,
	total_chapters INTEGER NOT NULL DEFAULT 0,
	completed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS series_chapters (
	series_id TEXT NOT NULL,
	article_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(series_id, article_id),
	FOREIGN KEY(series_id) REFERENCES series(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// InsertArticle inserts an article with its category and tag associations.
func (s *sqliteStore) InsertArticle(ctx context.Context, a store.Article) error {
	if a.ID == "" {
		return internalerr.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertArticleTx(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func insertArticleTx(ctx context.Context, tx *sql.Tx, a store.Article) error {
	embJSON, err := json.Marshal(a.Embedding)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO articles (id, title, body_locator, author_id, author_name, series_id, chapter_index, description, embedding, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, a.ID, a.Title, a.BodyLocator, a.AuthorID, a.AuthorName, a.SeriesID, a.ChapterIndex,
		a.Description, string(embJSON), a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	for i, cat := range a.Categories {
		if cat == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO article_categories (article_id, category_id, position) VALUES (?, ?, ?);
`, a.ID, cat, i+1); err != nil {
			return err
		}
	}

	if err := insertTagRefs(ctx, tx, a.ID, store.KindGenre, a.Genres); err != nil {
		return err
	}
	return insertTagRefs(ctx, tx, a.ID, store.KindTopic, a.Topics)
}

func insertTagRefs(ctx context.Context, tx *sql.Tx, articleID string, dim store.Kind, refs []store.TagRef) error {
	for _, ref := range refs {
		if ref.ID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO article_tags (article_id, dim, tag_id, relevance) VALUES (?, ?, ?, ?);
`, articleID, string(dim), ref.ID, ref.Relevance); err != nil {
			return err
		}
	}
	return nil
}

// GetArticle retrieves an article by ID
func (s *sqliteStore) GetArticle(ctx context.Context, id string) (store.Article, bool, error) {
	a, err := s.loadArticle(ctx, id)
	if err == sql.ErrNoRows {
		return store.Article{}, false, nil
	}
	if err != nil {
		return store.Article{}, false, err
	}
	return a, true, nil
}

// DeleteArticle removes an article, returning what was removed so the caller
// can apply the counter delta.
func (s *sqliteStore) DeleteArticle(ctx context.Context, id string) (store.Article, bool, error) {
	a, found, err := s.GetArticle(ctx, id)
	if err != nil || !found {
		return store.Article{}, false, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id=?`, id); err != nil {
		return store.Article{}, false, err
	}
	return a, true, nil
}

// ScanArticles visits every stored article.
func (s *sqliteStore) ScanArticles(ctx context.Context, fn func(store.Article) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM articles ORDER BY id`)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		a, err := s.loadArticle(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

// ResolveTag finds or creates a vocabulary entry in a single upsert, so two
// concurrent resolves of the same name never mint duplicates.
func (s *sqliteStore) ResolveTag(ctx context.Context, kind store.Kind, name string) (store.TagEntry, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return store.TagEntry{}, internalerr.ErrInvalidInput
	}

	var entry store.TagEntry
	var rowID int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO vocab (kind, name, total_articles) VALUES (?, ?, 0)
ON CONFLICT(kind, name) DO UPDATE SET name=excluded.name
RETURNING id, total_articles;
`, string(kind), name).Scan(&rowID, &entry.TotalArticles)
	if err != nil {
		return store.TagEntry{}, fmt.Errorf("%w: %v", internalerr.ErrVocabularyWrite, err)
	}

	entry.ID = fmt.Sprintf("%d", rowID)
	entry.Kind = kind
	entry.Name = name
	return entry, nil
}

// GetTag retrieves a vocabulary entry by ID
func (s *sqliteStore) GetTag(ctx context.Context, kind store.Kind, id string) (store.TagEntry, bool, error) {
	var entry store.TagEntry
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, total_articles FROM vocab WHERE kind=? AND id=?;
`, string(kind), id).Scan(&entry.ID, &entry.Name, &entry.TotalArticles)
	if err == sql.ErrNoRows {
		return store.TagEntry{}, false, nil
	}
	if err != nil {
		return store.TagEntry{}, false, err
	}
	entry.Kind = kind
	return entry, true, nil
}

// GetTagByName retrieves a vocabulary entry by lowercase name
func (s *sqliteStore) GetTagByName(ctx context.Context, kind store.Kind, name string) (store.TagEntry, bool, error) {
	var entry store.TagEntry
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, total_articles FROM vocab WHERE kind=? AND name=?;
`, string(kind), strings.ToLower(name)).Scan(&entry.ID, &entry.Name, &entry.TotalArticles)
	if err == sql.ErrNoRows {
		return store.TagEntry{}, false, nil
	}
	if err != nil {
		return store.TagEntry{}, false, err
	}
	entry.Kind = kind
	return entry, true, nil
}

// TagNames returns all names of one vocabulary kind, sorted
func (s *sqliteStore) TagNames(ctx context.Context, kind store.Kind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vocab WHERE kind=? ORDER BY name`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TagNameIndex returns the id -> name map for one vocabulary kind
func (s *sqliteStore) TagNameIndex(ctx context.Context, kind store.Kind) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM vocab WHERE kind=?`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idx := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		idx[id] = name
	}
	return idx, rows.Err()
}

// IncTotal bumps totalArticles by delta, clamped at zero
func (s *sqliteStore) IncTotal(ctx context.Context, kind store.Kind, id string, delta int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE vocab
SET total_articles = CASE WHEN total_articles + ? < 0 THEN 0 ELSE total_articles + ? END
WHERE kind=? AND id=?;
`, delta, delta, string(kind), id)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrCounterUpdate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", internalerr.ErrNotFound, kind, id)
	}
	return nil
}

// IncCross bumps the keyed cross-reference counter in a single upsert, so
// two concurrent first writers of the same pair never produce duplicates.
func (s *sqliteStore) IncCross(ctx context.Context, kind store.Kind, id string, dim store.Kind, otherID, otherName string, delta int64) error {
	initial := delta
	if initial < 0 {
		initial = 0
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cross_counts (kind, entity_id, dim, other_id, other_name, count)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(kind, entity_id, dim, other_id) DO UPDATE SET
	count = CASE WHEN count + ? < 0 THEN 0 ELSE count + ? END,
	other_name = CASE WHEN excluded.other_name != '' THEN excluded.other_name ELSE other_name END;
`, string(kind), id, string(dim), otherID, otherName, initial, delta, delta)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrCounterUpdate, err)
	}
	return nil
}

// SetTotal overwrites totalArticles
func (s *sqliteStore) SetTotal(ctx context.Context, kind store.Kind, id string, total int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE vocab SET total_articles=? WHERE kind=? AND id=?;
`, total, string(kind), id)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrCounterUpdate, err)
	}
	return nil
}

// ReplaceCross swaps one dimension's cross-reference table in a transaction
func (s *sqliteStore) ReplaceCross(ctx context.Context, kind store.Kind, id string, dim store.Kind, refs []store.CrossRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM cross_counts WHERE kind=? AND entity_id=? AND dim=?;
`, string(kind), id, string(dim)); err != nil {
		return err
	}
	for _, ref := range refs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cross_counts (kind, entity_id, dim, other_id, other_name, count)
VALUES (?, ?, ?, ?, ?, ?);
`, string(kind), id, string(dim), ref.ID, ref.Name, ref.Count); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ResetCounters zeroes every total and drops every cross-reference row
func (s *sqliteStore) ResetCounters(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE vocab SET total_articles=0`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cross_counts`)
	return err
}

// CrossCounts returns one dimension's table, omitting zero-count entries
func (s *sqliteStore) CrossCounts(ctx context.Context, kind store.Kind, id string, dim store.Kind) ([]store.CrossRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT other_id, other_name, count
FROM cross_counts
WHERE kind=? AND entity_id=? AND dim=? AND count > 0
ORDER BY other_id;
`, string(kind), id, string(dim))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []store.CrossRef
	for rows.Next() {
		var ref store.CrossRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Count); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// CreateSeriesWithChapter inserts the series and its first chapter in one
// transaction. The counter aggregation for the chapter happens outside it.
func (s *sqliteStore) CreateSeriesWithChapter(ctx context.Context, sr store.Series, first store.Article) error {
	if sr.ID == "" || first.ID == "" {
		return internalerr.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO series (id, title, author_id, author_name, total_chapters, completed)
VALUES (?, ?, ?, ?, 1, ?);
`, sr.ID, sr.Title, sr.AuthorID, sr.AuthorName, boolToInt(sr.Completed)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO series_chapters (series_id, article_id, position) VALUES (?, ?, 1);
`, sr.ID, first.ID); err != nil {
		return err
	}
	if err := insertArticleTx(ctx, tx, first); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSeries retrieves a series with its chapter list
func (s *sqliteStore) GetSeries(ctx context.Context, id string) (store.Series, bool, error) {
	var sr store.Series
	var completed int
	err := s.db.QueryRowContext(ctx, `
SELECT id, title, author_id, author_name, total_chapters, completed
FROM series WHERE id=?;
`, id).Scan(&sr.ID, &sr.Title, &sr.AuthorID, &sr.AuthorName, &sr.TotalChapters, &completed)
	if err == sql.ErrNoRows {
		return store.Series{}, false, nil
	}
	if err != nil {
		return store.Series{}, false, err
	}
	sr.Completed = completed != 0

	rows, err := s.db.QueryContext(ctx, `
SELECT article_id FROM series_chapters WHERE series_id=? ORDER BY position;
`, id)
	if err != nil {
		return store.Series{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var aid string
		if err := rows.Scan(&aid); err != nil {
			return store.Series{}, false, err
		}
		sr.Chapters = append(sr.Chapters, aid)
	}
	return sr, true, rows.Err()
}

// AppendChapter adds an article to a series and keeps totalChapters in step
// with the chapter list.
func (s *sqliteStore) AppendChapter(ctx context.Context, seriesID, articleID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(position), 0) + 1 FROM series_chapters WHERE series_id=?;
`, seriesID).Scan(&next); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO series_chapters (series_id, article_id, position) VALUES (?, ?, ?);
`, seriesID, articleID, next); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
UPDATE series SET total_chapters=? WHERE id=?;
`, next, seriesID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: series %s", internalerr.ErrNotFound, seriesID)
	}
	return tx.Commit()
}

func (s *sqliteStore) loadArticle(ctx context.Context, id string) (store.Article, error) {
	var (
		a       store.Article
		embJSON string
		created string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, title, body_locator, author_id, author_name, series_id, chapter_index, description, embedding, created_at
FROM articles WHERE id=?;
`, id).Scan(&a.ID, &a.Title, &a.BodyLocator, &a.AuthorID, &a.AuthorName, &a.SeriesID,
		&a.ChapterIndex, &a.Description, &embJSON, &created)
	if err != nil {
		return store.Article{}, err
	}

	if embJSON != "" {
		if err := json.Unmarshal([]byte(embJSON), &a.Embedding); err != nil {
			return store.Article{}, err
		}
	}
	if created != "" {
		if parsed, perr := time.Parse(time.RFC3339, created); perr == nil {
			a.CreatedAt = parsed
		}
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT category_id FROM article_categories WHERE article_id=? ORDER BY position;
`, id)
	if err != nil {
		return store.Article{}, err
	}
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			rows.Close()
			return store.Article{}, err
		}
		a.Categories = append(a.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return store.Article{}, err
	}
	rows.Close()

	a.Genres, err = s.loadTagRefs(ctx, id, store.KindGenre)
	if err != nil {
		return store.Article{}, err
	}
	a.Topics, err = s.loadTagRefs(ctx, id, store.KindTopic)
	if err != nil {
		return store.Article{}, err
	}
	return a, nil
}

func (s *sqliteStore) loadTagRefs(ctx context.Context, articleID string, dim store.Kind) ([]store.TagRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tag_id, relevance FROM article_tags WHERE article_id=? AND dim=? ORDER BY relevance;
`, articleID, string(dim))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []store.TagRef
	for rows.Next() {
		var ref store.TagRef
		if err := rows.Scan(&ref.ID, &ref.Relevance); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
