// Package metrics exports custody operation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const subsystem = "custody"

// Custody holds the Prometheus metrics of one custodian.
type Custody struct {
	Operations      *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	Refunds         *prometheus.CounterVec
	PositionsMinted prometheus.Counter
}

// NewCustody creates the custody metrics and registers them on reg. A nil
// registerer leaves them unregistered.
func NewCustody(reg prometheus.Registerer, namespace string) *Custody {
	factory := promauto.With(reg)
	return &Custody{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Custody operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Custody operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Refunds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refunds_total",
				Help:      "Unused desired amounts returned to callers",
			},
			[]string{"op"},
		),
		PositionsMinted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "positions_minted_total",
				Help:      "Positions minted through custody",
			},
		),
	}
}

func (m *Custody) ObserveOperation(op, outcome string, elapsed time.Duration) {
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Custody) ObserveRefund(op string) {
	m.Refunds.WithLabelValues(op).Inc()
}

func (m *Custody) ObserveMint() {
	m.PositionsMinted.Inc()
}
