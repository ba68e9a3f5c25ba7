// Package store persists summarization history, feedback and recommendation
// clicks in SQLite. Records are append-only; the only mutation is the
// per-user wipe.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"newsly/internal/core"
)

const maxPerPage = 100

// Store is the SQLite-backed history store. Writes serialize through a
// single connection so the uniqueness invariant holds under concurrent
// inserts.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and runs the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, core.WrapError(core.KindStoreUnavailable, "creating data directory failed", err)
		}
	}
	// busy_timeout lets concurrent readers wait out the single writer
	// instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "opening database failed", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, core.WrapError(core.KindStoreUnavailable, "initializing database failed", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS summary_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			article_url TEXT NOT NULL,
			article_title TEXT,
			content_excerpt TEXT,
			summary_text TEXT,
			summary_language TEXT,
			original_length INTEGER,
			summary_length INTEGER,
			keywords_json TEXT,
			category TEXT,
			created_at DATETIME NOT NULL,
			created_at_sec INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_created
			ON summary_history (user_id, created_at DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_dedupe
			ON summary_history (user_id, article_url, created_at_sec);`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			article_url TEXT NOT NULL,
			rating INTEGER,
			feedback_type TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_user_created
			ON feedback (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS recommendation_clicks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			article_url TEXT NOT NULL,
			clicked_at DATETIME NOT NULL
		);`,
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("creating table failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Insert stores one history record. A record for the same user, URL and
// second is silently skipped; duplicate reports that case. Missing ID and
// CreatedAt are filled in.
func (s *Store) Insert(ctx context.Context, rec core.HistoryRecord) (id string, duplicate bool, err error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	keywords, err := json.Marshal(rec.Keywords)
	if err != nil {
		return "", false, core.WrapError(core.KindStoreUnavailable, "encoding keywords failed", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO summary_history
		(id, user_id, article_url, article_title, content_excerpt, summary_text,
		 summary_language, original_length, summary_length, keywords_json, category,
		 created_at, created_at_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ArticleURL, rec.ArticleTitle, rec.ContentExcerpt,
		rec.SummaryText, rec.SummaryLanguage, rec.OriginalLength, rec.SummaryLength,
		string(keywords), string(rec.Category),
		rec.CreatedAt.UTC(), rec.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return "", false, core.WrapError(core.KindStoreUnavailable, "inserting history record failed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, core.WrapError(core.KindStoreUnavailable, "inserting history record failed", err)
	}
	if affected == 0 {
		return "", true, nil
	}
	return rec.ID, false, nil
}

// List returns one page of a user's history, newest first. languageFilter
// narrows to one summary language when non-empty. Pages are 1-indexed.
func (s *Store) List(ctx context.Context, userID string, page, perPage int, languageFilter string) (*core.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	where := "WHERE user_id = ?"
	args := []any{userID}
	if languageFilter != "" {
		where += " AND summary_language = ?"
		args = append(args, languageFilter)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summary_history "+where, args...).Scan(&total); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "counting history failed", err)
	}

	// id is the second sort key so records sharing a created_at second
	// paginate deterministically.
	query := `SELECT id, user_id, article_url, article_title, content_excerpt,
		summary_text, summary_language, original_length, summary_length,
		keywords_json, category, created_at
		FROM summary_history ` + where + `
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "listing history failed", err)
	}
	defer func() { _ = rows.Close() }()

	records := []core.HistoryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "listing history failed", err)
	}

	totalPages := (total + perPage - 1) / perPage
	return &core.HistoryPage{
		Records:    records,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

func scanRecord(rows *sql.Rows) (core.HistoryRecord, error) {
	var rec core.HistoryRecord
	var keywordsJSON, category string
	var createdAt time.Time
	err := rows.Scan(&rec.ID, &rec.UserID, &rec.ArticleURL, &rec.ArticleTitle,
		&rec.ContentExcerpt, &rec.SummaryText, &rec.SummaryLanguage,
		&rec.OriginalLength, &rec.SummaryLength, &keywordsJSON, &category, &createdAt)
	if err != nil {
		return rec, core.WrapError(core.KindStoreUnavailable, "scanning history record failed", err)
	}
	if keywordsJSON != "" {
		_ = json.Unmarshal([]byte(keywordsJSON), &rec.Keywords)
	}
	rec.Category = core.Category(category)
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}

// KeywordsOfUser returns keyword frequencies over the user's history in the
// look-back window. Counting happens in Go because the keywords live as a
// JSON array per row.
func (s *Store) KeywordsOfUser(ctx context.Context, userID string, sinceDays int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keywords_json FROM summary_history
		WHERE user_id = ? AND created_at >= ?`,
		userID, since(sinceDays))
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history keywords failed", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, core.WrapError(core.KindStoreUnavailable, "reading history keywords failed", err)
		}
		var keywords []string
		if json.Unmarshal([]byte(raw), &keywords) != nil {
			continue
		}
		for _, k := range keywords {
			if k != "" {
				counts[k]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history keywords failed", err)
	}
	return counts, nil
}

// CategoriesOfUser returns category frequencies over the look-back window.
func (s *Store) CategoriesOfUser(ctx context.Context, userID string, sinceDays int) (map[core.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM summary_history
		WHERE user_id = ? AND created_at >= ? AND category != ''
		GROUP BY category`,
		userID, since(sinceDays))
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history categories failed", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[core.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, core.WrapError(core.KindStoreUnavailable, "reading history categories failed", err)
		}
		counts[core.Category(category)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history categories failed", err)
	}
	return counts, nil
}

// URLsOfUser returns every article URL in the user's history, for the
// recommender's already-seen exclusion.
func (s *Store) URLsOfUser(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT article_url FROM summary_history WHERE user_id = ?", userID)
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history URLs failed", err)
	}
	defer func() { _ = rows.Close() }()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, core.WrapError(core.KindStoreUnavailable, "reading history URLs failed", err)
		}
		urls[u] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history URLs failed", err)
	}
	return urls, nil
}

// InsertFeedback stores one rating. The referenced history record does not
// have to exist.
func (s *Store) InsertFeedback(ctx context.Context, fb core.FeedbackRecord) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return core.NewError(core.KindInvalidRequest, "rating must be between 1 and 5")
	}
	createdAt := fb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, article_url, rating, feedback_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), fb.UserID, fb.ArticleURL, fb.Rating, fb.FeedbackType, createdAt.UTC())
	if err != nil {
		return core.WrapError(core.KindStoreUnavailable, "inserting feedback failed", err)
	}
	return nil
}

// InsertRecommendationClick records that a user opened a recommended
// article.
func (s *Store) InsertRecommendationClick(ctx context.Context, userID, articleURL string, clickedAt time.Time) error {
	if clickedAt.IsZero() {
		clickedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendation_clicks (id, user_id, article_url, clicked_at)
		VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, articleURL, clickedAt.UTC())
	if err != nil {
		return core.WrapError(core.KindStoreUnavailable, "inserting recommendation click failed", err)
	}
	return nil
}

// Stats aggregates a user's history counts.
func (s *Store) Stats(ctx context.Context, userID string) (*core.UserStats, error) {
	stats := &core.UserStats{
		UserID:      userID,
		PerLanguage: make(map[string]int),
		PerCategory: make(map[core.Category]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT summary_language, category, created_at FROM summary_history
		WHERE user_id = ?`, userID)
	if err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history stats failed", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var language, category string
		var createdAt time.Time
		if err := rows.Scan(&language, &category, &createdAt); err != nil {
			return nil, core.WrapError(core.KindStoreUnavailable, "reading history stats failed", err)
		}
		stats.TotalSummaries++
		if language != "" {
			stats.PerLanguage[language]++
		}
		if category != "" {
			stats.PerCategory[core.Category(category)]++
		}
		createdAt = createdAt.UTC()
		if stats.FirstAt == nil || createdAt.Before(*stats.FirstAt) {
			t := createdAt
			stats.FirstAt = &t
		}
		if stats.LastAt == nil || createdAt.After(*stats.LastAt) {
			t := createdAt
			stats.LastAt = &t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.KindStoreUnavailable, "reading history stats failed", err)
	}
	return stats, nil
}

// DeleteUser wipes every record the user owns across all three tables and
// returns the number of removed rows.
func (s *Store) DeleteUser(ctx context.Context, userID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.WrapError(core.KindStoreUnavailable, "starting delete failed", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for _, table := range []string{"summary_history", "feedback", "recommendation_clicks"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID)
		if err != nil {
			return 0, core.WrapError(core.KindStoreUnavailable, "deleting user records failed", err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, core.WrapError(core.KindStoreUnavailable, "committing delete failed", err)
	}
	return total, nil
}

func since(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}
