package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RegistrationsStarted   prometheus.Counter
	RegistrationsCompleted prometheus.Counter
	StageAdvances          *prometheus.CounterVec
	VerificationsIssued    *prometheus.CounterVec
	VerificationsConfirmed *prometheus.CounterVec
	ConfirmationFailures   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		RegistrationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_registrations_started_total",
			Help: "Total number of registrations started",
		}),
		RegistrationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "monedero_registrations_completed_total",
			Help: "Total number of registrations that reached the final stage",
		}),
		StageAdvances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_registration_stage_advances_total",
			Help: "Total number of stage advances, by stage reached",
		}, []string{"stage"}),
		VerificationsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_verifications_issued_total",
			Help: "Total number of verification codes dispatched, by channel",
		}, []string{"channel"}),
		VerificationsConfirmed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_verifications_confirmed_total",
			Help: "Total number of verification codes confirmed, by channel",
		}, []string{"channel"}),
		ConfirmationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "monedero_verification_failures_total",
			Help: "Total number of failed confirmation attempts, by channel",
		}, []string{"channel"}),
	}
}

func (m *Metrics) IncrementStarted() {
	if m != nil {
		m.RegistrationsStarted.Inc()
	}
}

func (m *Metrics) IncrementCompleted() {
	if m != nil {
		m.RegistrationsCompleted.Inc()
	}
}

func (m *Metrics) IncrementStageAdvance(stage string) {
	if m != nil {
		m.StageAdvances.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) IncrementIssued(channel string) {
	if m != nil {
		m.VerificationsIssued.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncrementConfirmed(channel string) {
	if m != nil {
		m.VerificationsConfirmed.WithLabelValues(channel).Inc()
	}
}

func (m *Metrics) IncrementFailure(channel string) {
	if m != nil {
		m.ConfirmationFailures.WithLabelValues(channel).Inc()
	}
}
