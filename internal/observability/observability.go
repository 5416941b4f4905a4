// Package observability holds the service's Prometheus collectors. Metrics
// are package-level and registered at init so adapters can record to them
// without plumbing a registry through every constructor.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GatewayCalls counts platform RPCs by method and outcome.
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpanel_gateway_calls_total",
			Help: "Platform API calls by method and result.",
		},
		[]string{"method", "result"},
	)

	// GatewayCallDuration tracks platform RPC latency by method.
	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetpanel_gateway_call_duration_seconds",
			Help:    "Platform API call latency by method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// ReconcileRuns counts reconciliation passes by outcome.
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpanel_reconcile_runs_total",
			Help: "Reconciliation passes by result.",
		},
		[]string{"result"},
	)

	// ReconcileDuration tracks how long a full reconciliation pass takes.
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetpanel_reconcile_duration_seconds",
			Help:    "Duration of a full reconciliation pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NameSyncs counts mapping records rewritten because their cached device
	// name drifted from the platform.
	NameSyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetpanel_name_syncs_total",
			Help: "Mapping records rewritten to follow device renames.",
		},
	)

	// CredentialWrites counts credential save and clear operations.
	CredentialWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetpanel_credential_writes_total",
			Help: "Credential write operations by kind and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		GatewayCalls,
		GatewayCallDuration,
		ReconcileRuns,
		ReconcileDuration,
		NameSyncs,
		CredentialWrites,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGatewayCall records one platform RPC.
func ObserveGatewayCall(method string, duration time.Duration, err error) {
	GatewayCalls.WithLabelValues(method, resultLabel(err)).Inc()
	GatewayCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveReconcile records one reconciliation pass.
func ObserveReconcile(duration time.Duration, err error) {
	ReconcileRuns.WithLabelValues(resultLabel(err)).Inc()
	ReconcileDuration.Observe(duration.Seconds())
}

// ObserveCredentialWrite records a save or clear operation.
func ObserveCredentialWrite(op string, err error) {
	CredentialWrites.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
