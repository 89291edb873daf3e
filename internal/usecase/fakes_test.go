package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/cache"
	pkgcache "GranStocks/pkg/cache"
)

// dailyBars builds n daily bars ending yesterday (UTC), rising by rate per day.
func dailyBars(symbol string, n int, rate float64) *models.CandleSeries {
	end := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -1)
	bars := make([]models.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		price *= 1 + rate
		bars[i] = models.Bar{
			T: end.AddDate(0, 0, i-n+1).Unix(),
			O: open,
			H: price * 1.01,
			L: open * 0.99,
			C: price,
			V: 1000,
		}
	}
	return models.NewCandleSeries(symbol, "test", bars)
}

type fakeProvider struct {
	name    string
	quote   *models.Quote
	series  *models.CandleSeries
	err     error
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) call() error {
	p.calls.Add(1)
	if p.started != nil {
		p.once.Do(func() { close(p.started) })
	}
	if p.release != nil {
		<-p.release
	}
	return p.err
}

func (p *fakeProvider) GetQuote(context.Context, string) (*models.Quote, error) {
	if err := p.call(); err != nil {
		return nil, err
	}
	if p.quote == nil {
		return nil, models.NewProviderError(p.name, "quote", 0, models.ErrUnsupported)
	}
	q := *p.quote
	return &q, nil
}

func (p *fakeProvider) GetCandles(context.Context, string, models.Range) (*models.CandleSeries, error) {
	if err := p.call(); err != nil {
		return nil, err
	}
	if p.series == nil {
		return nil, models.NewProviderError(p.name, "candles", 0, models.ErrUnsupported)
	}
	return p.series, nil
}

func (p *fakeProvider) GetOverview(context.Context, string) (*models.Overview, error) {
	return nil, models.NewProviderError(p.name, "overview", 0, models.ErrUnsupported)
}

func (p *fakeProvider) GetNews(context.Context, string, int) (*models.NewsFeed, error) {
	return nil, models.NewProviderError(p.name, "news", 0, models.ErrUnsupported)
}

func failing(name string, err error) *fakeProvider {
	return &fakeProvider{name: name, err: models.NewProviderError(name, "call", 0, err)}
}

type memEntryStore struct {
	mu sync.Mutex
	m  map[string]cache.Entry
}

func newMemEntryStore() *memEntryStore { return &memEntryStore{m: map[string]cache.Entry{}} }

func (s *memEntryStore) GetEntry(_ context.Context, key string) (*cache.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, pkgcache.ErrCacheMiss
	}
	return &e, nil
}

func (s *memEntryStore) PutEntry(_ context.Context, e *cache.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[e.Key] = *e
	return nil
}

func (s *memEntryStore) MarkStale(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok {
		e.IsStale = true
		s.m[key] = e
	}
	return nil
}

func newTestTiered(t *testing.T, store cache.EntryStore) *cache.Tiered {
	mem := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxTTL(cache.MaxMemoryTTL))
	t.Cleanup(func() { _ = mem.Close() })
	return cache.NewTiered(mem, store)
}

type memBars struct {
	mu   sync.Mutex
	rows map[string]models.PriceBar
}

func newMemBars() *memBars { return &memBars{rows: map[string]models.PriceBar{}} }

func barKey(a models.AssetType, symbol, date string) string {
	return fmt.Sprintf("%s|%s|%s", a, symbol, date)
}

func (m *memBars) UpsertBars(_ context.Context, bars []models.PriceBar) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		m.rows[barKey(b.AssetType, b.Symbol, b.Date)] = b
	}
	return len(bars), nil
}

func (m *memBars) Range(_ context.Context, a models.AssetType, symbol, fromDate string) ([]models.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceBar
	for _, b := range m.rows {
		if b.AssetType == a && b.Symbol == symbol && b.Date >= fromDate {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memBars) Coverage(ctx context.Context, a models.AssetType, symbol string) (string, string, int, error) {
	rows, _ := m.Range(ctx, a, symbol, "")
	if len(rows) == 0 {
		return "", "", 0, nil
	}
	return rows[0].Date, rows[len(rows)-1].Date, len(rows), nil
}

type memStates struct {
	mu sync.Mutex
	m  map[string]models.SymbolCacheState
}

func newMemStates() *memStates { return &memStates{m: map[string]models.SymbolCacheState{}} }

func (s *memStates) Get(_ context.Context, a models.AssetType, symbol string) (*models.SymbolCacheState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[string(a)+":"+symbol]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &st, nil
}

func (s *memStates) Upsert(_ context.Context, st *models.SymbolCacheState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[string(st.AssetType)+":"+st.Symbol] = *st
	return nil
}

func (s *memStates) ListByStatus(_ context.Context, status models.CacheStatus) ([]models.SymbolCacheState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SymbolCacheState
	for _, st := range s.m {
		if st.Status == status {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

type memJobs struct {
	mu      sync.Mutex
	m       map[string]models.JobState
	cursors []int
}

func newMemJobs() *memJobs { return &memJobs{m: map[string]models.JobState{}} }

func (j *memJobs) TryStart(_ context.Context, st *models.JobState, staleBefore time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := st.UniverseType + "/" + st.UniverseName
	if cur, ok := j.m[key]; ok && cur.Status == models.JobRunning && !cur.UpdatedAt.Before(staleBefore) {
		return models.ErrJobRunning
	}
	st.Status = models.JobRunning
	st.CursorIndex = 0
	st.LastError = ""
	st.FinishedAt = nil
	j.m[key] = *st
	return nil
}

func (j *memJobs) SaveCursor(_ context.Context, uType, uName, runID string, cursor int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := uType + "/" + uName
	cur := j.m[key]
	if cur.RunID == runID && cur.Status == models.JobRunning {
		cur.CursorIndex = cursor
		j.m[key] = cur
		j.cursors = append(j.cursors, cursor)
	}
	return nil
}

func (j *memJobs) Finish(_ context.Context, st *models.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.m[st.UniverseType+"/"+st.UniverseName] = *st
	return nil
}

func (j *memJobs) Get(_ context.Context, uType, uName string) (*models.JobState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	st, ok := j.m[uType+"/"+uName]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &st, nil
}

type memSnaps struct {
	mu         sync.Mutex
	indicators map[string]models.IndicatorSnapshot
	preds      []models.PredictionSnapshot
	screener   map[string]models.ScreenerSnapshot
}

func newMemSnaps() *memSnaps {
	return &memSnaps{
		indicators: map[string]models.IndicatorSnapshot{},
		screener:   map[string]models.ScreenerSnapshot{},
	}
}

func (s *memSnaps) HasIndicatorSnapshot(_ context.Context, symbol, date string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indicators[symbol+"|"+date]
	return ok, nil
}

func (s *memSnaps) SaveIndicatorSnapshot(_ context.Context, snap models.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snap.Symbol + "|" + snap.Date
	if _, ok := s.indicators[key]; !ok {
		s.indicators[key] = snap
	}
	return nil
}

func (s *memSnaps) SavePredictionSnapshots(_ context.Context, snaps []models.PredictionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preds = append(s.preds, snaps...)
	return nil
}

func (s *memSnaps) UpsertScreenerSnapshot(_ context.Context, snap models.ScreenerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screener[snap.Date+"|"+snap.UniverseType+"|"+snap.UniverseName+"|"+snap.Symbol] = snap
	return nil
}

func (s *memSnaps) ListScreenerSnapshots(_ context.Context, uType, uName, date string, limit int) ([]models.ScreenerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScreenerSnapshot
	for _, snap := range s.screener {
		if snap.Date == date && snap.UniverseType == uType && snap.UniverseName == uName {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memSnaps) LatestScreenerDate(_ context.Context, uType, uName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := ""
	for _, snap := range s.screener {
		if snap.UniverseType == uType && snap.UniverseName == uName && snap.Date > latest {
			latest = snap.Date
		}
	}
	if latest == "" {
		return "", models.ErrNotFound
	}
	return latest, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	reqs []models.WarmRequest
}

func (e *recordingEnqueuer) Enqueue(req models.WarmRequest) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	return true
}

func (e *recordingEnqueuer) requests() []models.WarmRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.WarmRequest(nil), e.reqs...)
}

// fakeSource serves candles directly, counting calls per mode.
type fakeSource struct {
	series    *models.CandleSeries
	err       error
	cached    atomic.Int32
	live      atomic.Int32
	lastRange atomic.Value
}

func (s *fakeSource) GetCandles(_ context.Context, req models.CandlesRequest) (*models.CandleSeries, error) {
	s.cached.Add(1)
	s.lastRange.Store(req.Range)
	return s.result()
}

func (s *fakeSource) GetCandlesLive(_ context.Context, req models.CandlesRequest) (*models.CandleSeries, error) {
	s.live.Add(1)
	s.lastRange.Store(req.Range)
	return s.result()
}

func (s *fakeSource) result() (*models.CandleSeries, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}
