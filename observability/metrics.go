package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LeaseMetrics is the lazily-initialised Prometheus registry for lease
// lifecycle activity: state transitions, liquidations, repayments, and DEX
// submission retries.
type LeaseMetrics struct {
	Transitions  *prometheus.CounterVec
	Liquidations *prometheus.CounterVec
	Repayments   *prometheus.CounterVec
	DexRetries   *prometheus.CounterVec
	OpenLeases   prometheus.Gauge
}

var (
	leaseMetricsOnce sync.Once
	leaseRegistry    *LeaseMetrics
)

// Metrics returns the process-wide lease metrics registry, registering its
// collectors with the default Prometheus registerer on first use.
func Metrics() *LeaseMetrics {
	leaseMetricsOnce.Do(func() {
		leaseRegistry = &LeaseMetrics{
			Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lease",
				Subsystem: "engine",
				Name:      "transitions_total",
				Help:      "Total lease state transitions segmented by from and to state.",
			}, []string{"from", "to"}),
			Liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lease",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Total liquidation decisions segmented by cause and whether full close.",
			}, []string{"cause", "full"}),
			Repayments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lease",
				Subsystem: "engine",
				Name:      "repayments_total",
				Help:      "Total repayment applications segmented by whether they closed the loan.",
			}, []string{"closed"}),
			DexRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lease",
				Subsystem: "dex",
				Name:      "retries_total",
				Help:      "Total DEX task retries segmented by task kind and reason.",
			}, []string{"task", "reason"}),
			OpenLeases: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lease",
				Subsystem: "engine",
				Name:      "open_total",
				Help:      "Current count of leases in an opened, non-terminal state.",
			}),
		}
		prometheus.MustRegister(
			leaseRegistry.Transitions,
			leaseRegistry.Liquidations,
			leaseRegistry.Repayments,
			leaseRegistry.DexRetries,
			leaseRegistry.OpenLeases,
		)
	})
	return leaseRegistry
}
