// Package store persists analysis results in SQLite: a history of analyzed
// pages and a content-addressed cache that lets repeat runs of an unchanged
// page skip the pipeline.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/transqa/internal/qa"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		page_title TEXT,
		overall_score REAL,
		purity_score REAL,
		issue_count INTEGER DEFAULT 0,
		critical_count INTEGER DEFAULT 0,
		analysis_error TEXT,
		result_json TEXT NOT NULL,
		analyzed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- result_cache lets an unchanged page (same URL, language, and content
	-- hash) reuse its previous result instead of re-running the pipeline
	CREATE TABLE IF NOT EXISTS result_cache (
		url TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		result_json TEXT NOT NULL,
		hit_count INTEGER DEFAULT 0,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (url, target_lang, content_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_url ON analyses(url, analyzed_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_time ON analyses(analyzed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveResult records a completed analysis in the history and refreshes the
// cache entry for its content hash.
func (s *Store) SaveResult(ctx context.Context, result *qa.PageResult, contentHash string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	id := fmt.Sprintf("an_%d", time.Now().UnixNano())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, url, target_lang, content_hash, page_title, overall_score, purity_score, issue_count, critical_count, analysis_error, result_json, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.URL, result.TargetLang, contentHash, result.PageTitle,
		result.Stats.OverallScore, result.Stats.LanguagePurityScore,
		len(result.Issues), result.CountAtOrAbove(qa.Critical),
		result.AnalysisError, string(payload), result.AnalyzedAt)
	if err != nil {
		return err
	}

	// Failed analyses are kept in history but never served from cache.
	if result.AnalysisError != "" {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO result_cache (url, target_lang, content_hash, result_json, hit_count, last_used, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		result.URL, result.TargetLang, contentHash, string(payload), time.Now(), time.Now())
	return err
}

// GetCached returns the stored result for an unchanged page, if any.
func (s *Store) GetCached(ctx context.Context, url, targetLang, contentHash string) (*qa.PageResult, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM result_cache WHERE url = ? AND target_lang = ? AND content_hash = ?`,
		url, targetLang, contentHash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result qa.PageResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE result_cache SET hit_count = hit_count + 1, last_used = ? WHERE url = ? AND target_lang = ? AND content_hash = ?`,
		time.Now(), url, targetLang, contentHash)
	return &result, true, err
}

// HistoryEntry is one row from the analyses table, without the full result.
type HistoryEntry struct {
	ID            string
	URL           string
	TargetLang    string
	PageTitle     string
	OverallScore  float64
	PurityScore   float64
	IssueCount    int
	CriticalCount int
	AnalysisError string
	AnalyzedAt    time.Time
}

// History returns past analyses, most recent first. Pass an empty URL to
// list across all pages.
func (s *Store) History(ctx context.Context, url string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, url, target_lang, COALESCE(page_title, ''), overall_score, purity_score, issue_count, critical_count, COALESCE(analysis_error, ''), analyzed_at FROM analyses`
	var args []interface{}
	if url != "" {
		query += ` WHERE url = ?`
		args = append(args, url)
	}
	query += ` ORDER BY analyzed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.TargetLang, &e.PageTitle, &e.OverallScore,
			&e.PurityScore, &e.IssueCount, &e.CriticalCount, &e.AnalysisError, &e.AnalyzedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetResult loads the full stored result for one history entry.
func (s *Store) GetResult(ctx context.Context, id string) (*qa.PageResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result_json FROM analyses WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	var result qa.PageResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// CacheStats summarises result cache usage.
type CacheStats struct {
	TotalEntries int
	TotalHits    int
	HistoryRows  int
}

func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM result_cache`).
		Scan(&stats.TotalEntries, &stats.TotalHits)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&stats.HistoryRows)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ClearCache removes all cached results, keeping the history.
func (s *Store) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM result_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearHistory removes all history rows.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ContentHash derives the cache key component from page content. Whitespace
// is trimmed and the text NFC-normalized so equivalent encodings hash alike.
func ContentHash(content string) string {
	normalized := norm.NFC.String(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
