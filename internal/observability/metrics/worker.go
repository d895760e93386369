package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics exposes the processing worker's counters on its own
// registry, keeping the scrape surface free of default Go collectors.
type PipelineMetrics struct {
	registry *prometheus.Registry

	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsInFlight    prometheus.Gauge
	queueLag        prometheus.Histogram
	analysisMode    *prometheus.CounterVec
	duplicatesTotal prometheus.Counter
}

func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Finished pipeline iterations by resulting job status.",
		},
		[]string{"status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Wall time of one job from claim to terminal status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently being processed.",
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	analysisMode := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "analysis_total",
			Help:      "Analysis outcomes by strategy (combined, sequential, failed).",
		},
		[]string{"mode"},
	)
	duplicatesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "zettelwerk",
			Subsystem: "pipeline",
			Name:      "duplicates_total",
			Help:      "Submissions rejected because the content hash was already archived.",
		},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, analysisMode, duplicatesTotal)

	return &PipelineMetrics{
		registry:        registry,
		jobsTotal:       jobsTotal,
		jobDuration:     jobDuration,
		jobsInFlight:    jobsInFlight,
		queueLag:        queueLag,
		analysisMode:    analysisMode,
		duplicatesTotal: duplicatesTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records one finished iteration under the job's final status.
func (m *PipelineMetrics) FinishJob(status string, duration time.Duration) {
	m.jobsInFlight.Dec()
	m.jobsTotal.WithLabelValues(status).Inc()
	m.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *PipelineMetrics) ObserveAnalysisMode(mode string) {
	m.analysisMode.WithLabelValues(mode).Inc()
}

func (m *PipelineMetrics) ObserveDuplicate() {
	m.duplicatesTotal.Inc()
}
