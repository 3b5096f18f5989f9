// Package metrics holds the Prometheus instruments exported by the service.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskq"

// Outcome label values shared by the lease and status-update counters.
const (
	OutcomeLeased   = "leased"
	OutcomeEmpty    = "empty"
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics groups the counters recorded by the queue, coordinator and
// identifier components.
type Metrics struct {
	identifiers   *prometheus.CounterVec
	inconsistent  *prometheus.CounterVec
	leaseAttempts *prometheus.CounterVec
	statusUpdates *prometheus.CounterVec
}

// New creates the counters and registers them with reg.
// Passing nil skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		identifiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_generated_total",
			Help:      "Identifiers handed out, by source.",
		}, []string{"source"}),
		inconsistent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistent_writes_total",
			Help:      "Service metadata writes that reached the store but not the search index.",
		}, []string{"operation"}),
		leaseAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_attempts_total",
			Help:      "Next-job requests, by outcome.",
		}, []string{"outcome"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_updates_total",
			Help:      "Job status updates, by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.identifiers, m.inconsistent, m.leaseAttempts, m.statusUpdates)
	}

	return m
}

// IdentifierGenerated counts one identifier from source.
func (m *Metrics) IdentifierGenerated(source string) {
	if m == nil {
		return
	}
	m.identifiers.WithLabelValues(source).Inc()
}

// InconsistentWrite counts a partial dual write for operation.
func (m *Metrics) InconsistentWrite(operation string) {
	if m == nil {
		return
	}
	m.inconsistent.WithLabelValues(operation).Inc()
}

// LeaseAttempt counts a lease request with the given outcome.
func (m *Metrics) LeaseAttempt(outcome string) {
	if m == nil {
		return
	}
	m.leaseAttempts.WithLabelValues(outcome).Inc()
}

// StatusUpdate counts a status update with the given outcome.
func (m *Metrics) StatusUpdate(outcome string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(outcome).Inc()
}

// IdentifierCounter returns the current identifier counter for source.
// It is intended for tests and diagnostics.
func (m *Metrics) IdentifierCounter(source string) prometheus.Counter {
	return m.identifiers.WithLabelValues(source)
}

// InconsistentWriteCounter returns the inconsistency counter for operation.
func (m *Metrics) InconsistentWriteCounter(operation string) prometheus.Counter {
	return m.inconsistent.WithLabelValues(operation)
}

// LeaseAttemptCounter returns the lease counter for outcome.
func (m *Metrics) LeaseAttemptCounter(outcome string) prometheus.Counter {
	return m.leaseAttempts.WithLabelValues(outcome)
}

// StatusUpdateCounter returns the status-update counter for outcome.
func (m *Metrics) StatusUpdateCounter(outcome string) prometheus.Counter {
	return m.statusUpdates.WithLabelValues(outcome)
}
