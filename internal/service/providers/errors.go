package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"GranStocks/internal/domain/models"
	apphttp "GranStocks/pkg/http"
)

// Classify turns a transport or status failure into a *models.ProviderError.
// Throttling statuses wrap models.ErrRateLimited and 404 wraps models.ErrNoData.
func Classify(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return err
	}

	var se *apphttp.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests, http.StatusTeapot:
			return models.NewProviderError(provider, op, se.StatusCode, fmt.Errorf("%w: %w", models.ErrRateLimited, se))
		case http.StatusNotFound:
			return models.NewProviderError(provider, op, se.StatusCode, models.ErrNoData)
		default:
			return models.NewProviderError(provider, op, se.StatusCode, err)
		}
	}
	return models.NewProviderError(provider, op, 0, err)
}

// RetryAfter reports the upstream's requested back-off carried by err, if any.
func RetryAfter(err error) time.Duration {
	var se *apphttp.StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// NoData returns the empty-result error of provider/op.
func NoData(provider, op string) error {
	return models.NewProviderError(provider, op, 0, models.ErrNoData)
}

// Unsupported returns the capability error of provider/op.
func Unsupported(provider, op string) error {
	return models.NewProviderError(provider, op, 0, models.ErrUnsupported)
}

// Malformed wraps a payload that failed validation.
func Malformed(provider, op string, err error) error {
	return models.NewProviderError(provider, op, 0, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
