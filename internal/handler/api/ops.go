package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/domain/service"
	xhttp "GranStocks/pkg/http"
	xlogger "GranStocks/pkg/logger"
)

// ScreenerService is the screener surface used by the ops routes.
type ScreenerService interface {
	StartScreenerJob(ctx context.Context, u models.Universe, date string) (*models.JobState, error)
	Status(ctx context.Context, universeType, universeName string) (*models.JobState, error)
	Results(ctx context.Context, universeType, universeName, date string, limit int) (string, []models.ScreenerSnapshot, error)
}

// UniverseSource resolves static universes.
type UniverseSource interface {
	Get(typ, name string) (models.Universe, error)
}

// Analyzer derives the analysis aggregate for a symbol.
type Analyzer interface {
	Analyze(ctx context.Context, req models.QuoteRequest) (*models.Analysis, error)
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// OpsHandler serves health, screener, warm and analysis routes.
type OpsHandler struct {
	logger    *xlogger.Logger
	screener  ScreenerService
	universes UniverseSource
	warm      service.WarmEnqueuer
	analyzer  Analyzer
	checks    map[string]HealthCheck
}

func NewOpsHandler(
	logger *xlogger.Logger,
	screener ScreenerService,
	universes UniverseSource,
	warm service.WarmEnqueuer,
	analyzer Analyzer,
	checks map[string]HealthCheck,
) *OpsHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &OpsHandler{
		logger:    logger,
		screener:  screener,
		universes: universes,
		warm:      warm,
		analyzer:  analyzer,
		checks:    checks,
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/screener/:type/:name", h.ScreenerResults)
	g.POST("/screener/:type/:name/run", h.RunScreener)
	g.POST("/history/:assetType/:symbol/warm", h.Warm)
	g.GET("/analysis/:assetType/:symbol", h.Analysis)
}

// Health runs every dependency check; any failure turns the response into a 503.
func (h *OpsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	report := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	return xhttp.DataResponse(c, status, report)
}

func (h *OpsHandler) ScreenerResults(c echo.Context) error {
	req := &models.ScreenerResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	res := models.ScreenerResults{UniverseType: req.UniverseType, UniverseName: req.UniverseName, Rows: []models.ScreenerSnapshot{}}
	if st, err := h.screener.Status(ctx, req.UniverseType, req.UniverseName); err == nil {
		res.Job = st
	} else if !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("screener status error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	date, rows, err := h.screener.Results(ctx, req.UniverseType, req.UniverseName, req.Date, req.Limit)
	switch {
	case errors.Is(err, models.ErrNotFound) && res.Job != nil:
		// a first run is in progress; report the job without rows
	case err != nil:
		return xhttp.AppErrorResponse(c, toAppError(err))
	default:
		res.Date = date
		if rows != nil {
			res.Rows = rows
		}
	}
	return xhttp.SuccessResponse(c, res)
}

// RunScreener acknowledges immediately; scoring continues in the background.
func (h *OpsHandler) RunScreener(c echo.Context) error {
	req := &models.ScreenerRunRequest{Date: c.QueryParam("date")}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	u, err := h.universes.Get(req.UniverseType, req.UniverseName)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	st, err := h.screener.StartScreenerJob(c.Request().Context(), u, req.Date)
	if err != nil {
		if !errors.Is(err, models.ErrJobRunning) {
			h.logger.Error("screener start error", xlogger.String("universe", u.Key()), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.AcceptedResponse(c, st)
}

func (h *OpsHandler) Warm(c echo.Context) error {
	req := &models.SymbolPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	wr := models.WarmRequest{Symbol: models.NormalizeSymbol(req.Symbol), AssetType: req.AssetType}
	queued := h.warm.Enqueue(wr)
	return xhttp.AcceptedResponse(c, map[string]any{
		"symbol":    wr.Symbol,
		"assetType": wr.AssetType,
		"queued":    queued,
	})
}

func (h *OpsHandler) Analysis(c echo.Context) error {
	req := &models.SymbolPathRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analyzer.Analyze(c.Request().Context(), models.QuoteRequest{Symbol: req.Symbol, AssetType: req.AssetType})
	if err != nil {
		h.logger.Warn("analysis error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}
