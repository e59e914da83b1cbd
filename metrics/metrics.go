// Package metrics exposes in-process Prometheus gauges/counters for pool
// occupancy and job census. Grounded on the teacher's metrics/metrics.go
// (promauto-based struct of collectors), pruned to the subset spec.md's
// health/status component actually reports — no VOD pipeline, analytics, or
// catabalancer metrics exist here since none of those components are in
// SPEC_FULL.md. No dedicated /metrics HTTP route is registered (spec.md's
// endpoint table has no such route). /health and /video/status read pool and
// registry state directly; only the WebhookClient/UploadClient collectors are
// updated, by MonitorRequest.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type MediaServerMetrics struct {
	Version *prometheus.CounterVec

	JobsInFlight    *prometheus.GaugeVec // labeled by phase
	JobsTotal       *prometheus.CounterVec
	PoolInUse       *prometheus.GaugeVec // labeled by pool name
	PoolCeiling     *prometheus.GaugeVec
	SubprocessTotal *prometheus.CounterVec // labeled by kind, outcome

	WebhookClient ClientMetrics
	UploadClient  ClientMetrics
}

func newClientMetrics(prefix string) ClientMetrics {
	return ClientMetrics{
		RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "_retry_count",
			Help: "Number of retried requests",
		}, []string{"host"}),
		FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_failure_count",
			Help: "Total number of failed requests",
		}, []string{"host", "status_code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_request_duration_seconds",
			Help:    "Time taken to complete requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"host"}),
	}
}

func New(version string) *MediaServerMetrics {
	m := &MediaServerMetrics{
		Version: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "media_server_version",
			Help: "Current version running, incremented once on startup",
		}, []string{"version"}),
		JobsInFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "media_server_jobs_in_flight",
			Help: "Current number of jobs held in the registry by phase",
		}, []string{"phase"}),
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "media_server_jobs_total",
			Help: "Total jobs created",
		}, []string{"endpoint"}),
		PoolInUse: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "media_server_pool_in_use",
			Help: "Current in-use count per subprocess pool",
		}, []string{"pool"}),
		PoolCeiling: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "media_server_pool_ceiling",
			Help: "Configured ceiling per subprocess pool",
		}, []string{"pool"}),
		SubprocessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "media_server_subprocess_total",
			Help: "Total subprocesses spawned, by kind and outcome",
		}, []string{"kind", "outcome"}),
		WebhookClient: newClientMetrics("media_server_webhook"),
		UploadClient:  newClientMetrics("media_server_upload"),
	}
	m.Version.WithLabelValues(version).Inc()
	return m
}

// Metrics is the process-wide collector set, mirroring the teacher's
// package-level var Metrics = NewMetrics().
var Metrics = New("dev")
