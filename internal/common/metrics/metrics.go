package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visa_import_rows_total",
			Help: "Imported rows by outcome (inserted, updated, failed)",
		},
		[]string{"outcome"},
	)

	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visa_exports_total",
			Help: "Meeting exports by format",
		},
		[]string{"format"},
	)

	LetterRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visa_letter_renders_total",
			Help: "Visa letter renders by result",
		},
		[]string{"result"},
	)

	LetterRenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visa_letter_render_duration_seconds",
			Help:    "Time spent rendering a visa letter, optimizer included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	LetterFieldSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visa_letter_field_skips_total",
			Help: "Letter fields that could not be bound",
		},
		[]string{"field"},
	)

	OptimizerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visa_letter_optimizer_attempts_total",
			Help: "External PDF optimizer attempts by tool and result",
		},
		[]string{"tool", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route",
		},
		[]string{"method", "route"},
	)
)
