// Package metrics registers the process-wide Prometheus vectors every control-plane
// component increments, in the style of the teacher's controllers/metrics.go:
// package-level vars registered once from an init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RouterRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infraweave_router_requests_total",
			Help: "Number of request envelopes dispatched by event.",
		},
		[]string{"event", "outcome"},
	)

	OrchestratorJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infraweave_orchestrator_jobs_total",
			Help: "Number of orchestrator jobs run by event and terminal phase.",
		},
		[]string{"event", "phase"},
	)

	OrchestratorJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "infraweave_orchestrator_job_duration_seconds",
			Help:    "Time taken to drive a job from Init to a terminal phase.",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrchestratorLockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "infraweave_orchestrator_lock_wait_duration_seconds",
			Help:    "Time spent polling for a state-key lock before acquiring it or timing out.",
			Buckets: prometheus.DefBuckets,
		},
	)

	CatalogPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infraweave_catalog_publish_total",
			Help: "Number of catalog publish operations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	DriftSweepDeploymentsChecked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "infraweave_drift_sweep_deployments_checked_total",
			Help: "Total number of deployments evaluated for drift across all sweeps.",
		},
	)

	DriftJobsEnqueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "infraweave_drift_jobs_enqueued_total",
			Help: "Total number of plan-kind jobs enqueued by the drift sweep.",
		},
	)

	GitOpsCommitsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infraweave_gitops_commits_processed_total",
			Help: "Number of GitOps webhook commits processed by outcome.",
		},
		[]string{"outcome"},
	)

	K8sOpReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infraweave_k8sop_reconcile_total",
			Help: "Number of DeploymentClaim reconciliations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RouterRequestsTotal,
		OrchestratorJobsTotal,
		OrchestratorJobDuration,
		OrchestratorLockWaitDuration,
		CatalogPublishTotal,
		DriftSweepDeploymentsChecked,
		DriftJobsEnqueuedTotal,
		GitOpsCommitsProcessedTotal,
		K8sOpReconcileTotal,
	)
}
