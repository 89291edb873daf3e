package api

import (
	"errors"

	"GranStocks/internal/domain/models"
	xhttp "GranStocks/pkg/http"
)

// toAppError maps domain errors onto HTTP application errors. An exhausted
// provider chain exposes every provider error, so it is classified before the
// sentinel checks.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var (
		verr  *models.ValidationError
		chain *models.ChainError
	)
	switch {
	case errors.As(err, &verr):
		e := xhttp.BadRequestError(verr.Error())
		for i, f := range verr.Fields {
			if i == 0 {
				e.Field = f.Field
			}
			e.WithParam(f.Field, f.Message)
		}
		return e.WithError(err)
	case errors.As(err, &chain) && !chain.AllNoData():
		return xhttp.ServiceUnavailableError("market data providers unavailable").
			WithParam("op", chain.Op).
			WithParam("attempts", len(chain.Errors)).
			WithError(err)
	case errors.Is(err, models.ErrJobRunning):
		return xhttp.ConflictErrorf("a screener run is already in progress").WithError(err)
	case errors.Is(err, models.ErrNoData), errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundErrorf("no data available").WithError(err)
	case errors.Is(err, models.ErrAllProvidersFailed), errors.Is(err, models.ErrRateLimited), errors.Is(err, models.ErrUnsupported):
		return xhttp.ServiceUnavailableError("market data providers unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
