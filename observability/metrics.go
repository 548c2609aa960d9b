package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TreasuryMetrics records the accounting operations served over RPC.
type TreasuryMetrics struct {
	operations *prometheus.CounterVec
	feeAmounts *prometheus.CounterVec
}

var (
	treasuryMetricsOnce sync.Once
	treasuryRegistry    *TreasuryMetrics
)

// Treasury returns the lazily-initialised treasury metrics registry.
func Treasury() *TreasuryMetrics {
	treasuryMetricsOnce.Do(func() {
		treasuryRegistry = &TreasuryMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tresor",
				Subsystem: "treasury",
				Name:      "operations_total",
				Help:      "Total record operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			feeAmounts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tresor",
				Subsystem: "treasury",
				Name:      "fee_events_total",
				Help:      "Fee dispositions segmented by what happened to the fee.",
			}, []string{"disposition"}),
		}
		prometheus.MustRegister(treasuryRegistry.operations, treasuryRegistry.feeAmounts)
	})
	return treasuryRegistry
}

// RecordOperation counts one record operation with its outcome.
func (m *TreasuryMetrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// RecordFee counts one fee disposition: routed, held, skipped, or exempt.
func (m *TreasuryMetrics) RecordFee(disposition string) {
	if m == nil {
		return
	}
	m.feeAmounts.WithLabelValues(disposition).Inc()
}
