package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// WorkerMetrics covers ingestion, both queued jobs and one-shot file runs.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	jobsTotal       *prometheus.CounterVec
	chunksTotal     *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Total ingestion runs by final status.",
		},
		[]string{"service", "status"},
	)
	chunksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total chunks embedded and upserted.",
		},
		[]string{"service"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "job_duration_seconds",
			Help:      "Queued ingestion job duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "jobs_in_flight",
			Help:      "Number of in-flight ingestion jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(jobsTotal, chunksTotal, processDuration, processInFlight)

	return &WorkerMetrics{
		registry:        registry,
		service:         service,
		jobsTotal:       jobsTotal,
		chunksTotal:     chunksTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest is called by the ingestion pipeline once per run.
func (m *WorkerMetrics) ObserveIngest(status domain.DocumentStatus, chunks int) {
	m.jobsTotal.WithLabelValues(m.service, string(status)).Inc()
	if chunks > 0 {
		m.chunksTotal.WithLabelValues(m.service).Add(float64(chunks))
	}
}

func (m *WorkerMetrics) StartJob() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
