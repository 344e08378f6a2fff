package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dispatches counts every call the scheduler hands to a worker, retries included
	Dispatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulkdelete_dispatches_total",
			Help: "Total number of delete calls dispatched",
		},
	)

	// InFlight tracks calls dispatched and still awaiting a response
	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkdelete_inflight",
			Help: "Number of delete calls currently in flight",
		},
	)

	// QueueDepth tracks jobs waiting for admission
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bulkdelete_queue_depth",
			Help: "Number of jobs waiting to be dispatched",
		},
	)

	// AdmissionWait tracks how long a job waited between leaving the queue and dispatch
	AdmissionWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bulkdelete_admission_wait_seconds",
			Help:    "Time spent waiting for a free slot and the minimum spacing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Outcomes counts classified results per entity type
	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkdelete_outcomes_total",
			Help: "Total number of classified delete outcomes",
		},
		[]string{"entity", "outcome", "status"},
	)

	// Retries counts re-admissions after a rate limit response
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkdelete_retries_total",
			Help: "Total number of rate limited calls scheduled for retry",
		},
		[]string{"entity"},
	)

	// DeleteLatency tracks Management API delete latency
	DeleteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bulkdelete_delete_latency_seconds",
			Help:    "Delete call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	// TokenRequests counts token acquisitions by result
	TokenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkdelete_token_requests_total",
			Help: "Total number of access token requests",
		},
		[]string{"result"},
	)

	// LedgerWriteErrors counts failure records that could not be persisted
	LedgerWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkdelete_ledger_write_errors_total",
			Help: "Total number of failure ledger write errors",
		},
		[]string{"sink"},
	)
)
