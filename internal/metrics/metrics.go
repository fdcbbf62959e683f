// Package metrics defines the Prometheus collectors exposed by the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dailycraft/internal/events"
)

const namespace = "dailycraft"

// Metrics owns a private registry so tests and multiple gateways in one
// process never collide. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted       prometheus.Counter
	jobsFinished      *prometheus.CounterVec
	jobRunning        prometheus.Gauge
	jobDuration       *prometheus.HistogramVec
	timeToFirstChunk  prometheus.Histogram
	eventsPublished   *prometheus.CounterVec
	extractions       *prometheus.CounterVec
	extractionSeconds prometheus.Histogram
	workerSpawns      prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		jobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_jobs_started_total",
			Help:      "Generation jobs accepted by the coordinator",
		}),
		jobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_jobs_finished_total",
			Help:      "Generation jobs that reached a terminal state",
		}, []string{"status"}),
		jobRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_job_running",
			Help:      "1 while a generation job is running",
		}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_job_duration_seconds",
			Help:      "Wall time of generation jobs",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		timeToFirstChunk: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_time_to_first_chunk_seconds",
			Help:      "Time from job start to the first streamed delta",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to subscribers",
		}, []string{"name"}),
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_extractions_total",
			Help:      "Text extraction requests by outcome",
		}, []string{"outcome"}),
		extractionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ocr_extraction_duration_seconds",
			Help:      "Time spent per text extraction request, including worker start",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		workerSpawns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_worker_spawns_total",
			Help:      "Extraction worker processes started",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// JobStarted records an accepted generation job.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsStarted.Inc()
	m.jobRunning.Set(1)
}

// FirstChunk records the latency until the first delta of a job.
func (m *Metrics) FirstChunk(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.timeToFirstChunk.Observe(elapsed.Seconds())
}

// JobFinished records a terminal job status.
func (m *Metrics) JobFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	m.jobRunning.Set(0)
}

// Append counts published events; it lets Metrics act as an events.Sink.
func (m *Metrics) Append(evt events.Event) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(string(evt.Name)).Inc()
}

// WorkerSpawned counts extraction worker starts.
func (m *Metrics) WorkerSpawned() {
	if m == nil {
		return
	}
	m.workerSpawns.Inc()
}

// ExtractionFinished records one extraction request.
func (m *Metrics) ExtractionFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.extractionSeconds.Observe(elapsed.Seconds())
}
