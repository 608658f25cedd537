// Package storage provides persistence for the crawler: the output directory
// receiving fetched documents and an SQLite journal recording each run.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/focuscrawl/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements the crawler.Journal interface using SQLite
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection; the crawl loop is the only writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	journal := &SQLiteJournal{db: db}

	if err := journal.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// InitSchema creates the database schema
func (s *SQLiteJournal) InitSchema() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// SavePage records a fetched page. A page fetched again in a later run
// replaces the earlier row.
func (s *SQLiteJournal) SavePage(page *crawler.PageData) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pages (
			url, name, score, status_code, title, content_type, content_hash,
			ttfb_ms, download_time_ms, response_size_bytes, crawled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		page.URL,
		page.Name,
		page.Score,
		page.StatusCode,
		page.Title,
		page.ContentType,
		page.ContentHash,
		page.TTFB.Milliseconds(),
		page.DownloadTime.Milliseconds(),
		page.ResponseSize,
		page.CrawledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// SaveLinks saves multiple discovered links in a single transaction
func (s *SQLiteJournal) SaveLinks(links []*crawler.LinkData) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO links (
			source_url, target_url, anchor_text, score, discovered_at
		) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, link := range links {
		if _, err := stmt.Exec(
			link.SourceURL,
			link.TargetURL,
			link.AnchorText,
			link.Score,
			link.DiscoveredAt,
		); err != nil {
			return fmt.Errorf("failed to insert link %s -> %s: %w", link.SourceURL, link.TargetURL, err)
		}
	}

	return tx.Commit()
}

// SaveError saves details of a discarded candidate
func (s *SQLiteJournal) SaveError(crawlErr *crawler.CrawlError) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_errors (
			url, error_type, error_message, occurred_at
		) VALUES (?, ?, ?, ?)
	`,
		crawlErr.URL,
		crawlErr.ErrorType,
		crawlErr.ErrorMessage,
		crawlErr.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save error: %w", err)
	}
	return nil
}

// GetMeta retrieves a metadata value
func (s *SQLiteJournal) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteJournal) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// PageCount returns the number of recorded pages
func (s *SQLiteJournal) PageCount() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// ErrorCounts returns the number of recorded errors by type
func (s *SQLiteJournal) ErrorCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT error_type, COUNT(*) FROM crawl_errors GROUP BY error_type")
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var errorType string
		var n int
		if err := rows.Scan(&errorType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan error count: %w", err)
		}
		counts[errorType] = n
	}
	return counts, rows.Err()
}

// TopLinks returns the highest scored links recorded for target URLs
func (s *SQLiteJournal) TopLinks(limit int) ([]crawler.LinkData, error) {
	rows, err := s.db.Query(`
		SELECT source_url, target_url, COALESCE(anchor_text, ''), score, discovered_at
		FROM links
		ORDER BY score DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []crawler.LinkData
	for rows.Next() {
		var link crawler.LinkData
		if err := rows.Scan(&link.SourceURL, &link.TargetURL, &link.AnchorText, &link.Score, &link.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

var _ crawler.Journal = (*SQLiteJournal)(nil)
