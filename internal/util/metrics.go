package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_products_created_total",
		Help: "Total number of products accepted by the ledger",
	})

	StepsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_steps_recorded_total",
		Help: "Total number of supply chain steps accepted by the ledger",
	}, []string{"step_type"})

	WritesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_writes_rejected_total",
		Help: "Total number of write requests that failed",
	}, []string{"operation", "stage"})

	LedgerInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_invocations_total",
		Help: "Total number of ledger bridge invocations",
	}, []string{"operation", "result"})

	LedgerInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_invocation_duration_seconds",
		Help:    "Latency of ledger bridge invocations",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	LedgerFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entrypoint_fallbacks_total",
		Help: "Total number of writes served by the legacy entrypoint",
	}, []string{"operation"})

	MirrorWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_write_failures_total",
		Help: "Total number of failed mirror writes after a ledger success",
	}, []string{"target"})

	StatusCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "status_cache_lookups_total",
		Help: "Total number of status cache lookups",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
