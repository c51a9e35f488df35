// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы сценариев аутентификации.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics счётчики сценариев аутентификации.
type Metrics struct {
	authFlows *prometheus.CounterVec
}

// New регистрирует счётчики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authFlows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "auth_flows_total",
			Help:      "Number of completed authentication flows by flow and outcome.",
		}, []string{"flow", "outcome"}),
	}
	reg.MustRegister(m.authFlows)
	return m
}

// Flow учитывает завершение сценария. nil-получатель ничего не делает.
func (m *Metrics) Flow(flow string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.authFlows.WithLabelValues(flow, outcome).Inc()
}
