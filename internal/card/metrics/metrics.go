package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CardsIssued      *prometheus.CounterVec
	CardsActivated   prometheus.Counter
	CardsBlocked     prometheus.Counter
	CardsCanceled    *prometheus.CounterVec
	CardsExpired     prometheus.Counter
	RuleChangesTotal prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CardsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_cards_issued_total",
			Help: "Total number of cards issued, by card type",
		}, []string{"type"}),
		CardsActivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_cards_activated_total",
			Help: "Total number of card activations",
		}),
		CardsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_cards_blocked_total",
			Help: "Total number of temporary card blocks applied",
		}),
		CardsCanceled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_cards_canceled_total",
			Help: "Total number of card cancellations, by reason",
		}, []string{"reason"}),
		CardsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_cards_expired_total",
			Help: "Total number of cards marked expired by the lazy expiry check",
		}),
		RuleChangesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_card_rule_changes_total",
			Help: "Total number of usage rule updates applied to cards",
		}),
	}
}

func (m *Metrics) IncrementIssued(cardType string) {
	if m != nil {
		m.CardsIssued.WithLabelValues(cardType).Inc()
	}
}

func (m *Metrics) IncrementActivated() {
	if m != nil {
		m.CardsActivated.Inc()
	}
}

func (m *Metrics) IncrementBlocked() {
	if m != nil {
		m.CardsBlocked.Inc()
	}
}

func (m *Metrics) IncrementCanceled(reason string) {
	if m != nil {
		m.CardsCanceled.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementExpired() {
	if m != nil {
		m.CardsExpired.Inc()
	}
}

func (m *Metrics) IncrementRuleChanges() {
	if m != nil {
		m.RuleChangesTotal.Inc()
	}
}
