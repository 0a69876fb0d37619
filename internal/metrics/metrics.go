package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Import outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeReplayed = "replayed"
	OutcomeConflict = "conflict"
)

// Explanation sources.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Metrics holds Prometheus metrics for the reconciliation services.
type Metrics struct {
	ImportsTotal          *prometheus.CounterVec
	ImportedTransactions  prometheus.Counter
	MatchesProposedTotal  prometheus.Counter
	MatchesConfirmedTotal prometheus.Counter
	ReconcileDuration     prometheus.Histogram
	ExplanationsTotal     *prometheus.CounterVec
}

// New returns the process-wide metrics, registering them on first use.
//
// Metrics:
//   - recon_imports_total{outcome} - import calls by outcome (created, replayed, conflict)
//   - recon_imported_transactions_total - bank transactions persisted by imports
//   - recon_matches_proposed_total - matches created by reconcile sweeps
//   - recon_matches_confirmed_total - matches confirmed by operators
//   - recon_reconcile_duration_seconds - reconcile sweep latency
//   - recon_explanations_total{source} - explanations served by model or fallback
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ImportsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recon_imports_total",
					Help: "Total number of bank transaction import calls by outcome",
				},
				[]string{"outcome"},
			),
			ImportedTransactions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "recon_imported_transactions_total",
				Help: "Total number of bank transactions persisted by imports",
			}),
			MatchesProposedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "recon_matches_proposed_total",
				Help: "Total number of proposed matches created by reconcile sweeps",
			}),
			MatchesConfirmedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "recon_matches_confirmed_total",
				Help: "Total number of matches confirmed",
			}),
			ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "recon_reconcile_duration_seconds",
				Help:    "Duration of reconcile sweeps in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			}),
			ExplanationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recon_explanations_total",
					Help: "Total number of match explanations by source",
				},
				[]string{"source"},
			),
		}
	})
	return globalMetrics
}
