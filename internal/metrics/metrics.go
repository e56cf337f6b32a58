// Package metrics holds the Prometheus collectors for the custody core.
//
// A nil *Metrics is valid and records nothing, so components accept it as an
// optional dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "custodia"

// Metrics groups the collectors exercised by the gate, lockout policy, signer
// and provisioning flow.
type Metrics struct {
	AuthOutcomes    *prometheus.CounterVec
	Lockouts        prometheus.Counter
	LockoutLevel    prometheus.Gauge
	StoreFailures   *prometheus.CounterVec
	Signatures      *prometheus.CounterVec
	ProvisionSteps  *prometheus.CounterVec
	RemoteSubmitted *prometheus.CounterVec
}

// New creates the collectors and registers them with reg (if non-nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Device authentication outcomes seen by the gate.",
		}, []string{"outcome"}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Lockouts triggered by repeated authentication failures.",
		}),
		LockoutLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lockout_level",
			Help:      "Current lockout tier.",
		}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Persisted state writes or reads that failed.",
		}, []string{"component"}),
		Signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_total",
			Help:      "Payload signing attempts by result.",
		}, []string{"result"}),
		ProvisionSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_steps_total",
			Help:      "Wallet provisioning steps by stage, step and result.",
		}, []string{"stage", "step", "result"}),
		RemoteSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_submissions_total",
			Help:      "Submissions received by the reference wallet API.",
		}, []string{"resource", "result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.AuthOutcomes, m.Lockouts, m.LockoutLevel, m.StoreFailures,
			m.Signatures, m.ProvisionSteps, m.RemoteSubmitted,
		)
	}
	return m
}

func (m *Metrics) AuthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout(level int) {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
	m.LockoutLevel.Set(float64(level))
}

func (m *Metrics) LockoutCleared() {
	if m == nil {
		return
	}
	m.LockoutLevel.Set(0)
}

func (m *Metrics) StoreFailure(component string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(component).Inc()
}

func (m *Metrics) Signature(result string) {
	if m == nil {
		return
	}
	m.Signatures.WithLabelValues(result).Inc()
}

func (m *Metrics) ProvisionStep(stage, step, result string) {
	if m == nil {
		return
	}
	m.ProvisionSteps.WithLabelValues(stage, step, result).Inc()
}

func (m *Metrics) RemoteSubmission(resource, result string) {
	if m == nil {
		return
	}
	m.RemoteSubmitted.WithLabelValues(resource, result).Inc()
}
