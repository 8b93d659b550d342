// Package postgres provides the Postgres-backed chapter store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SQLSTATE codes that clear once the competing transaction finishes.
var contentionCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// Config controls the Postgres connection pool used for chapter rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// ChapterStore implements harvest.Store on a Postgres table.
type ChapterStore struct {
	pool  pool
	table string
}

// Open connects to Postgres and creates the chapter table if absent.
func Open(ctx context.Context, cfg Config) (*ChapterStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(ctx, p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing)
// and ensures the table exists.
func NewWithPool(ctx context.Context, p pool, table string) (*ChapterStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "quotes"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &ChapterStore{pool: p, table: table}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	chapter_title TEXT NOT NULL,
	chapter_url   TEXT NOT NULL UNIQUE,
	quote         TEXT NOT NULL
)`, table)
	if _, err := p.Exec(ctx, query); err != nil {
		return nil, fmt.Errorf("create schema: %w", classify(err))
	}
	return s, nil
}

// InsertIfAbsent inserts record unless its URL is already stored.
func (s *ChapterStore) InsertIfAbsent(ctx context.Context, record harvest.ChapterRecord) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (chapter_title, chapter_url, quote)
VALUES ($1, $2, $3)
ON CONFLICT (chapter_url) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, record.Title, record.URL, record.Excerpt)
	if err != nil {
		return false, fmt.Errorf("insert chapter: %w", classify(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ListAll returns every record in insertion order.
func (s *ChapterStore) ListAll(ctx context.Context) ([]harvest.ChapterRecord, error) {
	query := fmt.Sprintf(`SELECT id, chapter_title, chapter_url, quote FROM %s ORDER BY id ASC`, s.table)
	rows, err := s.pool.Query(ctx, query)
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

// Ping verifies the pool can reach the server.
func (s *ChapterStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ChapterStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && contentionCodes[pgErr.Code] {
		return fmt.Errorf("%w: %w", harvest.ErrContention, err)
	}
	return err
}
