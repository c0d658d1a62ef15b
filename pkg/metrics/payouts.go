package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics counts payout engine outcomes.
type PayoutMetrics struct {
	released  *prometheus.CounterVec
	scheduled prometheus.Counter
	skipped   *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout counters on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	released := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homecheff",
		Name:      "payouts_released_total",
		Help:      "Payouts recorded, by payout kind.",
	}, []string{"kind"})
	scheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "homecheff",
		Name:      "payouts_scheduled_total",
		Help:      "Escrows left in payout_scheduled after a failed transfer.",
	})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homecheff",
		Name:      "payouts_skipped_total",
		Help:      "Escrow releases skipped, by reason.",
	}, []string{"reason"})
	reg.MustRegister(released, scheduled, skipped)
	return &PayoutMetrics{
		released:  released,
		scheduled: scheduled,
		skipped:   skipped,
	}
}

func (m *PayoutMetrics) IncReleased(kind string) {
	if m == nil || m.released == nil {
		return
	}
	m.released.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *PayoutMetrics) IncScheduled() {
	if m == nil || m.scheduled == nil {
		return
	}
	m.scheduled.Inc()
}

func (m *PayoutMetrics) IncSkipped(reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}
