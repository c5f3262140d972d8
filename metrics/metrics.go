// Package metrics defines the Prometheus counters exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the deployer's counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Deployments   *prometheus.CounterVec
	Generation    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	PagesEnable   *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Deployments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_deployments_total",
			Help: "Deployments that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		Generation: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_generation_total",
			Help: "Generated file sets, by source.",
		}, []string{"source"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_notifications_total",
			Help: "Evaluator notifications, by result.",
		}, []string{"result"}),
		PagesEnable: f.NewCounterVec(prometheus.CounterOpts{
			Name: "deployer_pages_enable_total",
			Help: "Static hosting enable attempts, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) DeploymentFinished(outcome string) {
	if m == nil {
		return
	}
	m.Deployments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Generated(source string) {
	if m == nil {
		return
	}
	m.Generation.WithLabelValues(source).Inc()
}

func (m *Metrics) Notified(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) PagesEnabled(result string) {
	if m == nil {
		return
	}
	m.PagesEnable.WithLabelValues(result).Inc()
}
