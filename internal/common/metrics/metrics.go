// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funding_sweep_runs_total",
			Help: "Total number of escrow sweep executions",
		},
	)

	SweepFranchisesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_sweep_franchises_resolved_total",
			Help: "Franchises resolved by the sweep, by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "funding_sweep_duration_seconds",
			Help: "Duration of a full sweep pass in seconds",
		},
	)

	RefundsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funding_refunds_issued_total",
			Help: "Total refunds settled through the payment rail",
		},
	)

	RefundsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "funding_refunds_failed_total",
			Help: "Total refunds left in a failed state for manual review",
		},
	)

	RevenueDistributed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_revenue_distributed_minor_units_total",
			Help: "Revenue routed by the distribution engine, by destination",
		},
		[]string{"destination"}, // capital_recovery | dividends
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funding_frc_tokens_issued_total",
			Help: "FRC tokens issued, by issuance kind",
		},
		[]string{"kind"}, // initial | performance
	)

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
)
