package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_ingestion_jobs_started_total",
		Help: "Total ingestion jobs claimed for execution",
	})

	jobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_ingestion_jobs_completed_total",
		Help: "Total ingestion jobs completed",
	})

	jobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_ingestion_jobs_failed_total",
		Help: "Total ingestion jobs failed by stage and error kind",
	}, []string{"stage", "kind"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docvault_ingestion_stage_duration_seconds",
		Help:    "Duration of ingestion stages in seconds",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docvault_ingestion_job_duration_seconds",
		Help:    "End-to-end ingestion job duration in seconds",
		Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	stageRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_ingestion_stage_retries_total",
		Help: "Total retried stage attempts",
	}, []string{"stage"})

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_ingestion_dispatch_total",
		Help: "Ingestion dispatch attempts by mode and result",
	}, []string{"mode", "result"})

	workerMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_worker_messages_total",
		Help: "Queue messages handled by the worker by outcome",
	}, []string{"outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_http_requests_total",
		Help: "HTTP requests by route and status class",
	}, []string{"route", "method", "class"})

	httpPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docvault_http_panics_total",
		Help: "Handler panics recovered by the router",
	})
)

// IncJobsStarted increments the started counter.
func IncJobsStarted() {
	jobsStartedTotal.Inc()
}

// IncJobsCompleted increments the completed counter.
func IncJobsCompleted() {
	jobsCompletedTotal.Inc()
}

// IncJobsFailed increments the failed counter for a stage and error kind.
func IncJobsFailed(stage, kind string) {
	jobsFailedTotal.WithLabelValues(stage, kind).Inc()
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveJob records an end-to-end job duration.
func ObserveJob(d time.Duration) {
	jobDuration.Observe(d.Seconds())
}

// IncStageRetry counts a retried attempt of a stage.
func IncStageRetry(stage string) {
	stageRetriesTotal.WithLabelValues(stage).Inc()
}

// IncDispatch counts a dispatch attempt.
func IncDispatch(mode, result string) {
	dispatchTotal.WithLabelValues(mode, result).Inc()
}

// IncWorkerMessage counts a worker message outcome (received, completed, failed, deleted_unrecoverable).
func IncWorkerMessage(outcome string) {
	workerMessagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRequest counts a finished request. Unmatched routes share one label
// so arbitrary paths cannot grow the series count.
func ObserveRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
}

// IncPanic counts a recovered handler panic.
func IncPanic() {
	httpPanicsTotal.Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
