// Package metrics exposes prometheus instrumentation for the deal lifecycle.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ContractTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_contract_transitions_total",
			Help: "Contract status transitions",
		},
		[]string{"from", "to"},
	)

	ProvisioningOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_workspace_provisioning_total",
			Help: "Workspace provisioning attempts by outcome",
		},
		[]string{"outcome"}, // created, reused, conflict, failed
	)

	ProvisioningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "handshake_workspace_provisioning_duration_seconds",
			Help:    "Workspace provisioning duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	MilestoneTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_milestone_transitions_total",
			Help: "Milestone lifecycle actions by result",
		},
		[]string{"action", "result"},
	)

	SideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_side_effect_failures_total",
			Help: "Swallowed notification, push and payment signal failures",
		},
		[]string{"channel"},
	)

	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handshake_reconcile_contracts_total",
			Help: "Contracts handled by the reconciliation sweep by outcome",
		},
		[]string{"outcome"}, // created, repaired, completed, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handshake_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

func RecordContractTransition(from, to string) {
	ContractTransitions.WithLabelValues(from, to).Inc()
}

func RecordProvisioning(outcome string, duration time.Duration) {
	ProvisioningOutcomes.WithLabelValues(outcome).Inc()
	ProvisioningDuration.Observe(duration.Seconds())
}

// IncrementProvisioningConflict counts lost insert races; the outcome of the call is recorded separately.
func IncrementProvisioningConflict() {
	ProvisioningOutcomes.WithLabelValues("conflict").Inc()
}

func RecordMilestoneTransition(action, result string) {
	MilestoneTransitions.WithLabelValues(action, result).Inc()
}

func IncrementSideEffectFailure(channel string) {
	SideEffectFailures.WithLabelValues(channel).Inc()
}

func RecordReconcile(created, repaired, completed, failed int) {
	ReconcileOutcomes.WithLabelValues("created").Add(float64(created))
	ReconcileOutcomes.WithLabelValues("repaired").Add(float64(repaired))
	ReconcileOutcomes.WithLabelValues("completed").Add(float64(completed))
	ReconcileOutcomes.WithLabelValues("failed").Add(float64(failed))
}

func RecordHTTPRequestDuration(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
