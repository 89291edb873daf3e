package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"GranStocks/internal/domain/repository"
	pkgcache "GranStocks/pkg/cache"
	"GranStocks/pkg/logger"
)

// MaxMemoryTTL bounds the in-process tier.
const MaxMemoryTTL = 10 * time.Second

const genStripes = 64

// Tiered is a short-lived memory tier in front of a durable EntryStore.
// Only fresh entries are ever held in memory.
type Tiered struct {
	mem     pkgcache.Service
	store   EntryStore
	memTTL  time.Duration
	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time

	// gens is bumped by MarkStale; a read or write that began under an older
	// generation does not repopulate the memory tier.
	genMu sync.Mutex
	gens  [genStripes]uint64
}

// TieredOption configures Tiered.
type TieredOption func(*Tiered)

// WithMemoryTTL sets the memory tier lifetime, capped at MaxMemoryTTL.
func WithMemoryTTL(d time.Duration) TieredOption {
	return func(t *Tiered) {
		if d > 0 && d <= MaxMemoryTTL {
			t.memTTL = d
		}
	}
}

// WithMetrics records tier hits and misses.
func WithMetrics(m repository.Metrics) TieredOption {
	return func(t *Tiered) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) TieredOption {
	return func(t *Tiered) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTiered creates the cache.
func NewTiered(mem pkgcache.Service, store EntryStore, opts ...TieredOption) *Tiered {
	t := &Tiered{
		mem:     mem,
		store:   store,
		memTTL:  MaxMemoryTTL,
		metrics: repository.NopMetrics{},
		log:     logger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns the entry for key with IsStale set from the staleness
// predicate. Stale entries are returned; callers decide whether to serve them.
// A missing key yields pkg/cache.ErrCacheMiss.
func (t *Tiered) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	if err := t.mem.Get(ctx, key, &e); err == nil {
		t.metrics.RecordCacheLookup("memory", "hit")
		return &e, nil
	}
	t.metrics.RecordCacheLookup("memory", "miss")

	gen := t.generation(key)
	stored, err := t.store.GetEntry(ctx, key)
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			t.metrics.RecordCacheLookup("durable", "miss")
			return nil, pkgcache.ErrCacheMiss
		}
		t.metrics.RecordCacheLookup("durable", "error")
		return nil, fmt.Errorf("durable cache get %s: %w", key, err)
	}

	now := t.now()
	if stored.Stale(now) {
		stored.IsStale = true
		t.metrics.RecordCacheLookup("durable", "stale")
		return stored, nil
	}
	t.metrics.RecordCacheLookup("durable", "hit")
	t.remember(ctx, stored, gen, now)
	return stored, nil
}

// Set writes value to both tiers.
func (t *Tiered) Set(ctx context.Context, key, source string, value interface{}, ttl time.Duration) (*Entry, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	now := t.now()
	e := &Entry{
		Key:        key,
		Payload:    payload,
		TTLSeconds: ttlSeconds(ttl),
		WrittenAt:  now,
		Source:     source,
	}

	gen := t.generation(key)
	storeErr := t.store.PutEntry(ctx, e)
	t.remember(ctx, e, gen, now)
	if storeErr != nil {
		return e, fmt.Errorf("durable cache put %s: %w", key, storeErr)
	}
	return e, nil
}

// MarkStale flags key as degraded without deleting it. Reads already in flight
// will not put the old entry back into memory.
func (t *Tiered) MarkStale(ctx context.Context, key string) error {
	t.genMu.Lock()
	t.gens[stripe(key)]++
	_ = t.mem.Delete(ctx, key)
	t.genMu.Unlock()
	return t.store.MarkStale(ctx, key)
}

func (t *Tiered) generation(key string) uint64 {
	t.genMu.Lock()
	defer t.genMu.Unlock()
	return t.gens[stripe(key)]
}

func (t *Tiered) remember(ctx context.Context, e *Entry, gen uint64, now time.Time) {
	ttl := t.memTTL
	if remaining := e.ExpiresAt().Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	t.genMu.Lock()
	defer t.genMu.Unlock()
	if t.gens[stripe(e.Key)] != gen {
		return
	}
	if err := t.mem.Set(ctx, e.Key, e, ttl); err != nil {
		t.log.Debug("memory cache set failed", logger.String("key", e.Key), logger.Error(err))
	}
}

func stripe(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % genStripes)
}

// ttlSeconds rounds ttl up to whole seconds so a sub-second TTL is not stale
// on write.
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}
