package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"GranStocks/internal/domain/models"
)

func TestToAppError(t *testing.T) {
	noData := models.NewProviderError("yahoo", "candles", 404, models.ErrNoData)
	limited := models.NewProviderError("finnhub", "candles", 429, models.ErrRateLimited)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &models.ValidationError{Fields: []models.FieldViolation{{Field: "symbol", Message: "required"}}}, http.StatusBadRequest},
		{"job running", fmt.Errorf("start: %w", models.ErrJobRunning), http.StatusConflict},
		{"no data", fmt.Errorf("analyze: %w", models.ErrNoData), http.StatusNotFound},
		{"not found", models.ErrNotFound, http.StatusNotFound},
		{"mixed chain", &models.ChainError{Op: "candles", Key: "k", Errors: []error{noData, limited}}, http.StatusServiceUnavailable},
		{"no-data chain", &models.ChainError{Op: "candles", Key: "k", Errors: []error{noData}}, http.StatusNotFound},
		{"rate limited", limited, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := toAppError(tc.err)
			assert.Equal(t, tc.status, e.Status)
			assert.ErrorIs(t, e, tc.err)
		})
	}
}

func TestToAppErrorParams(t *testing.T) {
	e := toAppError(&models.ValidationError{Fields: []models.FieldViolation{
		{Field: "symbol", Message: "required"},
		{Field: "limit", Message: "max 1000"},
	}})
	assert.Equal(t, "symbol", e.Field)
	assert.Equal(t, map[string]interface{}{"symbol": "required", "limit": "max 1000"}, e.Params)

	chain := &models.ChainError{Op: "quote", Key: "quote:stock:AAPL", Errors: []error{
		models.NewProviderError("finnhub", "quote", 500, errors.New("boom")),
	}}
	e = toAppError(chain)
	assert.Equal(t, "quote", e.Params["op"])
	assert.Equal(t, 1, e.Params["attempts"])
}
