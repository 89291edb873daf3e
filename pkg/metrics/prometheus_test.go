package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/repository"
	"GranStocks/pkg/http/middleware"
	"GranStocks/pkg/kafka"
)

var (
	_ repository.Metrics      = (*Recorder)(nil)
	_ middleware.HTTPObserver = (*Recorder)(nil)
	_ kafka.Observer          = (*Recorder)(nil)
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordProviderCall("yahoo", "quote", "ok", 0.2)
	r.RecordProviderCall("yahoo", "quote", "ok", 0.3)
	r.RecordProviderCall("yahoo", "quote", "rate_limited", 0.01)
	r.RecordCacheLookup("memory", "hit")
	r.RecordJobRun("daily", "completed")
	r.RecordWarmResult("ready")
	r.RecordError("validation")

	assert.InDelta(t, 2, testutil.ToFloat64(r.providerCalls.WithLabelValues("yahoo", "quote", "ok")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.providerCalls.WithLabelValues("yahoo", "quote", "rate_limited")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.cacheLookups.WithLabelValues("memory", "hit")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.jobRuns.WithLabelValues("daily", "completed")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.warmResults.WithLabelValues("ready")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.errorsTotal.WithLabelValues("validation")), 1e-9)
}

func TestRecorderGauges(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.SetWarmQueueDepth(7)
	r.SetScreenerProgress("stocks/us-megacap", 4, 10)
	r.SetScreenerProgress("stocks/us-megacap", 10, 10)

	assert.InDelta(t, 7, testutil.ToFloat64(r.warmDepth), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(r.screenerCursor.WithLabelValues("stocks/us-megacap")), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(r.screenerTotal.WithLabelValues("stocks/us-megacap")), 1e-9)
}

func TestRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)
	assert.Panics(t, func() { NewWithRegistry(reg) })

}

func TestRecorderHTTPAndLimiter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)
	r.ObserveHTTP("/healthz", "GET", "200", 0.001)
	r.ObserveHTTP("/healthz", "GET", "503", 0.002)
	r.RecordLimiterWait("finnhub", 0.5)

	n, err := testutil.GatherAndCount(reg, "granstocks_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = testutil.GatherAndCount(reg, "granstocks_rate_limiter_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorderKafka(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())
	r.ObserveKafkaPublish("granstocks.events", "ok", 120, 0.01)
	r.ObserveKafkaPublish("granstocks.events", "ok", 80, 0.02)
	r.ObserveKafkaHandle("granstocks.warm-requests", "dead_letter", 0.5)

	assert.InDelta(t, 2, testutil.ToFloat64(r.kafkaMessages.WithLabelValues("publish", "granstocks.events", "ok")), 1e-9)
	assert.InDelta(t, 200, testutil.ToFloat64(r.kafkaBytes.WithLabelValues("granstocks.events")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(r.kafkaMessages.WithLabelValues("handle", "granstocks.warm-requests", "dead_letter")), 1e-9)
}
