package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
)

type fakeScreener struct {
	startErr error
	status   *models.JobState
	date     string
	rows     []models.ScreenerSnapshot
	started  []string
}

func (f *fakeScreener) StartScreenerJob(_ context.Context, u models.Universe, _ string) (*models.JobState, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, u.Key())
	return &models.JobState{UniverseType: u.Type, UniverseName: u.Name, Status: models.JobRunning, RunID: "r1", Total: len(u.Symbols)}, nil
}

func (f *fakeScreener) Status(context.Context, string, string) (*models.JobState, error) {
	if f.status == nil {
		return nil, models.ErrNotFound
	}
	return f.status, nil
}

func (f *fakeScreener) Results(_ context.Context, _, _, date string, _ int) (string, []models.ScreenerSnapshot, error) {
	if f.date == "" {
		return "", nil, models.ErrNotFound
	}
	if date == "" {
		date = f.date
	}
	return date, f.rows, nil
}

type fakeUniverses struct{}

func (fakeUniverses) Get(typ, name string) (models.Universe, error) {
	if typ == "stocks" && name == "test" {
		return models.Universe{Type: typ, Name: name, Symbols: []string{"AAPL", "MSFT"}}, nil
	}
	return models.Universe{}, fmt.Errorf("universe: %w", models.ErrNotFound)
}

type fakeWarm struct{ reqs []models.WarmRequest }

func (f *fakeWarm) Enqueue(req models.WarmRequest) bool {
	f.reqs = append(f.reqs, req)
	return true
}

type fakeAnalyzer struct{ err error }

func (f fakeAnalyzer) Analyze(_ context.Context, req models.QuoteRequest) (*models.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Analysis{Symbol: req.Symbol, AssetType: req.AssetType}, nil
}

func newTestServer(scr *fakeScreener, warm *fakeWarm, an Analyzer, checks map[string]HealthCheck) *echo.Echo {
	e := echo.New()
	NewOpsHandler(nil, scr, fakeUniverses{}, warm, an, checks).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHealth(t *testing.T) {
	e := newTestServer(&fakeScreener{}, &fakeWarm{}, fakeAnalyzer{}, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	rec, body := do(e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"database": "ok"}, body["data"])

	e = newTestServer(&fakeScreener{}, &fakeWarm{}, fakeAnalyzer{}, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	rec, _ = do(e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunScreener(t *testing.T) {
	scr := &fakeScreener{}
	e := newTestServer(scr, &fakeWarm{}, fakeAnalyzer{}, nil)

	rec, body := do(e, http.MethodPost, "/api/v1/screener/stocks/test/run")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"stocks/test"}, scr.started)
	data := body["data"].(map[string]any)
	assert.Equal(t, "RUNNING", data["status"])

	rec, _ = do(e, http.MethodPost, "/api/v1/screener/stocks/unknown/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(e, http.MethodPost, "/api/v1/screener/stocks/test/run?date=June")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	scr.startErr = fmt.Errorf("screener stocks/test: %w", models.ErrJobRunning)
	rec, _ = do(e, http.MethodPost, "/api/v1/screener/stocks/test/run")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScreenerResults(t *testing.T) {
	scr := &fakeScreener{
		status: &models.JobState{Status: models.JobCompleted, CursorIndex: 2, Total: 2},
		date:   "2024-06-03",
		rows: []models.ScreenerSnapshot{
			{Symbol: "MSFT", Score: 71},
			{Symbol: "AAPL", Score: 64},
		},
	}
	e := newTestServer(scr, &fakeWarm{}, fakeAnalyzer{}, nil)

	rec, body := do(e, http.MethodGet, "/api/v1/screener/stocks/test?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "2024-06-03", data["date"])
	assert.Len(t, data["rows"], 2)
	assert.NotNil(t, data["job"])

	rec, _ = do(e, http.MethodGet, "/api/v1/screener/stocks/test?limit=5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(e, http.MethodGet, "/api/v1/screener/stocks/never")
	require.Equal(t, http.StatusOK, rec.Code)

	e = newTestServer(&fakeScreener{}, &fakeWarm{}, fakeAnalyzer{}, nil)
	rec, _ = do(e, http.MethodGet, "/api/v1/screener/stocks/never")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWarm(t *testing.T) {
	warm := &fakeWarm{}
	e := newTestServer(&fakeScreener{}, warm, fakeAnalyzer{}, nil)

	rec, _ := do(e, http.MethodPost, "/api/v1/history/stock/aapl/warm")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []models.WarmRequest{{Symbol: "AAPL", AssetType: models.AssetStock}}, warm.reqs)

	rec, _ = do(e, http.MethodPost, "/api/v1/history/bond/AAPL/warm")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, warm.reqs, 1)
}

func TestAnalysisErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", models.ErrNoData), http.StatusNotFound},
		{&models.ChainError{Op: "candles", Errors: []error{errors.New("boom")}}, http.StatusServiceUnavailable},
		{&models.ValidationError{Fields: []models.FieldViolation{{Field: "symbol", Message: "bad"}}}, http.StatusBadRequest},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newTestServer(&fakeScreener{}, &fakeWarm{}, fakeAnalyzer{err: tc.err}, nil)
		rec, _ := do(e, http.MethodGet, "/api/v1/analysis/stock/AAPL")
		assert.Equal(t, tc.want, rec.Code, "%v", tc.err)
	}

	e := newTestServer(&fakeScreener{}, &fakeWarm{}, fakeAnalyzer{}, nil)
	rec, _ := do(e, http.MethodGet, "/api/v1/analysis/stock/BAD%20SYM")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
