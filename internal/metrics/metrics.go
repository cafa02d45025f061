// metrics — prometheus-коллекторы дашборда.
//
// Все методы безопасны для nil-получателя: компоненты, собранные без
// метрик (тесты, утилиты), просто ничего не пишут.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dashboard"

// SessionStates — известные состояния Session Manager (метка state).
var SessionStates = []string{"unchecked", "checking", "authenticated", "anonymous"}

type Metrics struct {
	sessionState     *prometheus.GaugeVec
	walletConnected  prometheus.Gauge
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "Current session state (1 for the active state).",
		}, []string{"state"}),
		walletConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_connected",
			Help:      "1 when a wallet account is connected.",
		}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound HTTP requests by upstream and status code.",
		}, []string{"upstream", "code"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream"}),
	}

	reg.MustRegister(m.sessionState, m.walletConnected, m.upstreamRequests, m.upstreamDuration)

	for _, s := range SessionStates {
		m.sessionState.WithLabelValues(s).Set(0)
	}

	return m
}

// SetSessionState выставляет 1 для текущего состояния и 0 для остальных.
func (m *Metrics) SetSessionState(current string) {
	if m == nil {
		return
	}

	for _, s := range SessionStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.sessionState.WithLabelValues(s).Set(v)
	}
}

// SetWalletConnected отражает факт подключения кошелька.
func (m *Metrics) SetWalletConnected(connected bool) {
	if m == nil {
		return
	}

	if connected {
		m.walletConnected.Set(1)
		return
	}

	m.walletConnected.Set(0)
}

// ObserveUpstream учитывает один исходящий запрос.
// code — HTTP-статус строкой либо "error" для транспортной ошибки.
func (m *Metrics) ObserveUpstream(upstream, code string, dur time.Duration) {
	if m == nil {
		return
	}

	m.upstreamRequests.WithLabelValues(upstream, code).Inc()
	m.upstreamDuration.WithLabelValues(upstream).Observe(dur.Seconds())
}
