// Package sqlite provides the SQLite-backed chapter store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

const schema = `
CREATE TABLE IF NOT EXISTS quotes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	chapter_title TEXT NOT NULL,
	chapter_url   TEXT NOT NULL UNIQUE,
	quote         TEXT NOT NULL
)`

// Config controls how the database file is opened.
type Config struct {
	Path string
	// BusyTimeout lets SQLite wait for a competing writer before reporting
	// SQLITE_BUSY. Zero reports contention immediately.
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// ChapterStore implements harvest.Store on a SQLite file in WAL mode.
type ChapterStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and its schema.
func Open(ctx context.Context, cfg Config) (*ChapterStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store.path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &ChapterStore{db: db}
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", classify(err))
	}
	return s, nil
}

// dsn applies the pragmas on every pooled connection, not just the first.
func dsn(cfg Config) string {
	params := url.Values{}
	if cfg.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	}
	params.Add("_pragma", "journal_mode(WAL)")
	return cfg.Path + "?" + params.Encode()
}

// InsertIfAbsent inserts record unless its URL is already stored.
func (s *ChapterStore) InsertIfAbsent(ctx context.Context, record harvest.ChapterRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO quotes (chapter_title, chapter_url, quote) VALUES (?, ?, ?)`,
		record.Title, record.URL, record.Excerpt,
	)
	if err != nil {
		return false, fmt.Errorf("insert chapter: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert chapter rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAll returns every record in insertion order.
func (s *ChapterStore) ListAll(ctx context.Context) ([]harvest.ChapterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chapter_title, chapter_url, quote FROM quotes ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", classify(err))
	}
	defer rows.Close()

	records := []harvest.ChapterRecord{}
	for rows.Next() {
		var rec harvest.ChapterRecord
		if err := rows.Scan(&rec.SequenceID, &rec.Title, &rec.URL, &rec.Excerpt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", classify(err))
	}
	return records, nil
}

// Ping verifies the database file is reachable.
func (s *ChapterStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *ChapterStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// classify marks SQLITE_BUSY and SQLITE_LOCKED as contention.
func classify(err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %w", harvest.ErrContention, err)
	}
	return err
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
