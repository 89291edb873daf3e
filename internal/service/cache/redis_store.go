package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcache "GranStocks/pkg/cache"
)

// RedisEntryStore keeps entries in Redis. Keys live for ttl + retention so a
// stale value survives as a fallback after its freshness window.
type RedisEntryStore struct {
	rc        *pkgcache.RedisCache
	retention time.Duration
}

// NewRedisEntryStore wraps rc.
func NewRedisEntryStore(rc *pkgcache.RedisCache, retention time.Duration) *RedisEntryStore {
	return &RedisEntryStore{rc: rc, retention: retention}
}

func (s *RedisEntryStore) GetEntry(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	if err := s.rc.Get(ctx, entryKey(key), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *RedisEntryStore) PutEntry(ctx context.Context, e *Entry) error {
	if err := s.rc.Set(ctx, entryKey(e.Key), e, e.TTL()+s.retention); err != nil {
		return fmt.Errorf("redis put %s: %w", e.Key, err)
	}
	return nil
}

// MarkStale flips the flag under WATCH so a concurrent PutEntry is never
// overwritten with the older payload.
func (s *RedisEntryStore) MarkStale(ctx context.Context, key string) error {
	var e Entry
	err := s.rc.Update(ctx, entryKey(key), &e, func() (bool, error) {
		return markStale(&e), nil
	})
	if err != nil && !errors.Is(err, pkgcache.ErrCacheMiss) {
		return fmt.Errorf("redis mark stale %s: %w", key, err)
	}
	return nil
}

// markStale sets the flag and reports whether e changed.
func markStale(e *Entry) bool {
	if e.IsStale {
		return false
	}
	e.IsStale = true
	return true
}

func entryKey(key string) string {
	return pkgcache.GenerateKey("entry", key)
}
