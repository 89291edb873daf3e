package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one durable cache record. Payload is opaque JSON.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	TTLSeconds int64           `json:"ttlSeconds"`
	WrittenAt  time.Time       `json:"writtenAt"`
	IsStale    bool            `json:"isStale"`
	Source     string          `json:"source"`
}

// TTL returns the freshness window.
func (e *Entry) TTL() time.Duration {
	return time.Duration(e.TTLSeconds) * time.Second
}

// ExpiresAt returns the end of the freshness window.
func (e *Entry) ExpiresAt() time.Time {
	return e.WrittenAt.Add(e.TTL())
}

// Stale is the single staleness predicate used by every read path: the entry
// was explicitly marked, or now is past writtenAt + ttl.
func (e *Entry) Stale(now time.Time) bool {
	return e.IsStale || now.After(e.ExpiresAt())
}

// Decode unmarshals the payload of e.
func Decode[T any](e *Entry) (T, error) {
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode cache entry %s: %w", e.Key, err)
	}
	return v, nil
}

// EntryStore is the durable tier. GetEntry returns pkg/cache.ErrCacheMiss when
// the key is absent; stale entries are still returned.
type EntryStore interface {
	GetEntry(ctx context.Context, key string) (*Entry, error)
	PutEntry(ctx context.Context, e *Entry) error
	MarkStale(ctx context.Context, key string) error
}
