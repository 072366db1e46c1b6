// Package metrics exposes Prometheus collectors for the summarizer service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task stages observed by ObserveStage.
const (
	StageFetch     = "fetch"
	StageSummarize = "summarize"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	summariesCreatedTotal      prometheus.Counter
	tasksTotal                 *prometheus.CounterVec
	taskStageDurationSeconds   *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	reapedTotal                prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "summarizer_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		summariesCreatedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "summarizer_summaries_created_total",
				Help: "Total number of summary records created through the API.",
			},
		)

		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summarizer_tasks_total",
				Help: "Total number of summarization tasks finished, labeled by final status.",
			},
			[]string{"status"},
		)

		taskStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "summarizer_task_stage_duration_seconds",
				Help:    "Histogram of time spent in each task stage.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "summarizer_active_workers",
				Help: "Number of workers currently running a summarization task.",
			},
		)

		reapedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "summarizer_reaped_total",
				Help: "Total number of orphaned processing records moved to failed.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSummaryCreated counts a record accepted by the API.
func ObserveSummaryCreated() {
	Init()
	summariesCreatedTotal.Inc()
}

// ObserveTask increments the task counter for the given final status.
func ObserveTask(status string) {
	Init()
	tasksTotal.WithLabelValues(status).Inc()
}

// ObserveStage records how long a task stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	taskStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveReaped counts records failed by the orphan sweep.
func ObserveReaped(n int) {
	Init()
	reapedTotal.Add(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}
