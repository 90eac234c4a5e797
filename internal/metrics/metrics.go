// Package metrics содержит Prometheus-коллекторы, используемые в приложении.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics хранит все коллекторы платформы.
type Metrics struct {
	MatchesTotal      prometheus.Counter
	RelayedMessages   *prometheus.CounterVec
	SessionsFinalized *prometheus.CounterVec
	StarsCredited     prometheus.Counter
	Withdrawals       *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry создаёт и регистрирует синглтон метрик.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			MatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "Total successful matchmaking pairings.",
			}),
			RelayedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relayed_messages_total",
				Help:      "Relay gate outcomes for inbound chat messages.",
			}, []string{"result"}),
			SessionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_finalized_total",
				Help:      "Finalized sessions by termination reason.",
			}, []string{"reason"}),
			StarsCredited: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stars_credited_total",
				Help:      "Total stars credited through the payment webhook.",
			}),
			Withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "withdrawals_total",
				Help:      "Withdrawal requests and payouts.",
			}, []string{"status"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.MatchesTotal,
			metricsInstance.RelayedMessages,
			metricsInstance.SessionsFinalized,
			metricsInstance.StarsCredited,
			metricsInstance.Withdrawals,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
