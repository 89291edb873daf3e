package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	limiterWait     *prometheus.HistogramVec
	warmDepth       prometheus.Gauge
	warmResults     *prometheus.CounterVec
	screenerCursor  *prometheus.GaugeVec
	screenerTotal   *prometheus.GaugeVec
	jobRuns         *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	kafkaMessages   *prometheus.CounterVec
	kafkaBytes      *prometheus.CounterVec
	kafkaLatency    *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_provider_requests_total",
				Help: "Upstream provider calls by outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		providerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granstocks_provider_request_seconds",
				Help:    "Upstream provider call latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "op"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_cache_lookups_total",
				Help: "Tiered cache lookups by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		limiterWait: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granstocks_rate_limiter_wait_seconds",
				Help:    "Time spent waiting for provider tokens",
				Buckets: []float64{0, 0.01, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"provider"},
		),
		warmDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "granstocks_warm_queue_depth",
				Help: "Symbols waiting in the history warm queue",
			},
		),
		warmResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_warm_queue_items_total",
				Help: "Warm queue items by outcome",
			},
			[]string{"outcome"},
		),
		screenerCursor: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "granstocks_screener_cursor",
				Help: "Current screener cursor per universe",
			},
			[]string{"universe"},
		),
		screenerTotal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "granstocks_screener_total",
				Help: "Universe size of the current screener run",
			},
			[]string{"universe"},
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_job_runs_total",
				Help: "Batch job runs by job and outcome",
			},
			[]string{"job", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_http_requests_total",
				Help: "Ops HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granstocks_http_request_seconds",
				Help:    "Ops HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		kafkaMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_kafka_messages_total",
				Help: "Kafka messages by direction, topic and result",
			},
			[]string{"direction", "topic", "result"},
		),
		kafkaBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "granstocks_kafka_published_bytes_total",
				Help: "Payload bytes written to Kafka",
			},
			[]string{"topic"},
		),
		kafkaLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "granstocks_kafka_seconds",
				Help:    "Kafka publish and handle latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction", "topic"},
		),
	}
}

// RecordProviderCall records one upstream call.
func (r *Recorder) RecordProviderCall(provider, op, outcome string, seconds float64) {
	r.providerCalls.WithLabelValues(provider, op, outcome).Inc()
	r.providerLatency.WithLabelValues(provider, op).Observe(seconds)
}

// RecordCacheLookup records a lookup on one cache tier.
func (r *Recorder) RecordCacheLookup(tier, outcome string) {
	r.cacheLookups.WithLabelValues(tier, outcome).Inc()
}

// RecordLimiterWait records time spent acquiring provider tokens.
func (r *Recorder) RecordLimiterWait(provider string, seconds float64) {
	r.limiterWait.WithLabelValues(provider).Observe(seconds)
}

// SetWarmQueueDepth sets the warm queue depth.
func (r *Recorder) SetWarmQueueDepth(n int) {
	r.warmDepth.Set(float64(n))
}

// RecordWarmResult counts warm queue items by outcome.
func (r *Recorder) RecordWarmResult(outcome string) {
	r.warmResults.WithLabelValues(outcome).Inc()
}

// SetScreenerProgress exposes screener progress for a universe.
func (r *Recorder) SetScreenerProgress(universe string, cursor, total int) {
	r.screenerCursor.WithLabelValues(universe).Set(float64(cursor))
	r.screenerTotal.WithLabelValues(universe).Set(float64(total))
}

// RecordJobRun counts a batch job run.
func (r *Recorder) RecordJobRun(job, outcome string) {
	r.jobRuns.WithLabelValues(job, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// ObserveHTTP records one served ops request.
func (r *Recorder) ObserveHTTP(route, method, status string, seconds float64) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(seconds)
}

// ObserveKafkaPublish records one produced message.
func (r *Recorder) ObserveKafkaPublish(topic, result string, bytes int, seconds float64) {
	r.kafkaMessages.WithLabelValues("publish", topic, result).Inc()
	r.kafkaBytes.WithLabelValues(topic).Add(float64(bytes))
	r.kafkaLatency.WithLabelValues("publish", topic).Observe(seconds)
}

// ObserveKafkaHandle records one consumed message.
func (r *Recorder) ObserveKafkaHandle(topic, result string, seconds float64) {
	r.kafkaMessages.WithLabelValues("handle", topic, result).Inc()
	r.kafkaLatency.WithLabelValues("handle", topic).Observe(seconds)
}
