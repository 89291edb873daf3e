package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GranStocks/internal/service/cache"
	pkgcache "GranStocks/pkg/cache"
	"GranStocks/pkg/database"
)

// SQLEntryStore is the durable cache tier on the relational database.
type SQLEntryStore struct {
	db *database.Client
}

var _ cache.EntryStore = (*SQLEntryStore)(nil)

// NewSQLEntryStore creates the store.
func NewSQLEntryStore(db *database.Client) *SQLEntryStore {
	return &SQLEntryStore{db: db}
}

func (s *SQLEntryStore) GetEntry(ctx context.Context, key string) (*cache.Entry, error) {
	const q = `SELECT payload, ttl_seconds, written_at, is_stale, source FROM cached_entries WHERE cache_key = ?`
	var (
		e         = cache.Entry{Key: key}
		payload   string
		writtenAt int64
		isStale   int
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&payload, &e.TTLSeconds, &writtenAt, &isStale, &e.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgcache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	e.Payload = []byte(payload)
	e.WrittenAt = time.Unix(writtenAt, 0)
	e.IsStale = isStale != 0
	return &e, nil
}

func (s *SQLEntryStore) PutEntry(ctx context.Context, e *cache.Entry) error {
	const q = `
		INSERT INTO cached_entries (cache_key, payload, ttl_seconds, written_at, is_stale, source)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			payload = excluded.payload,
			ttl_seconds = excluded.ttl_seconds,
			written_at = excluded.written_at,
			is_stale = excluded.is_stale,
			source = excluded.source`
	_, err := s.db.ExecContext(ctx, q, e.Key, string(e.Payload), e.TTLSeconds, e.WrittenAt.Unix(), boolToInt(e.IsStale), e.Source)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (s *SQLEntryStore) MarkStale(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE cached_entries SET is_stale = 1 WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("mark cache entry stale: %w", err)
	}
	return nil
}
