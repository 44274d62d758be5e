// Package metrics exposes sync, download and vendor request metrics to
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "itcsync"

type Registry struct {
	registry *prometheus.Registry

	vendorRequests *prometheus.CounterVec
	vendorLatency  *prometheus.HistogramVec
	syncRuns       *prometheus.CounterVec
	syncDuration   prometheus.Histogram
	builds         *prometheus.CounterVec
	tasks          *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		vendorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_requests_total",
			Help:      "iTunes Connect requests by operation and status code (0 when no response).",
		}, []string{"op", "code"}),
		vendorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vendor_request_duration_seconds",
			Help:      "iTunes Connect request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		syncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Discovery runs by outcome.",
		}, []string{"result"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Discovery run duration.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 90},
		}),
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Builds seen during discovery by outcome.",
		}, []string{"outcome"}),
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Executed tasks by name and result.",
		}, []string{"task", "result"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"task"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Tasks waiting for a worker.",
		}),
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) ObserveVendorRequest(op string, status int, elapsed time.Duration) {
	r.vendorRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	r.vendorLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (r *Registry) ObserveRun(result string, elapsed time.Duration) {
	r.syncRuns.WithLabelValues(result).Inc()
	r.syncDuration.Observe(elapsed.Seconds())
}

func (r *Registry) ObserveBuild(outcome string) {
	r.builds.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveTask(name string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.tasks.WithLabelValues(name, result).Inc()
	r.taskDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (r *Registry) SetQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}
