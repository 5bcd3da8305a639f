package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the realtime layer's operational counters.
// A nil *Metrics is valid and records nothing (used by small tests).
type Metrics struct {
	connections        prometheus.Gauge
	onlineUsers        prometheus.Gauge
	presenceBroadcasts prometheus.Counter
	relayDelivered     prometheus.Counter
	relayMisses        prometheus.Counter
	sendDrops          prometheus.Counter
}

// NewMetrics registers the chat metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "chirp_chat_connections",
			Help: "Currently attached websocket connections (including anonymous).",
		}),
		onlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chirp_chat_online_users",
			Help: "Users currently present in the connection registry.",
		}),
		presenceBroadcasts: f.NewCounter(prometheus.CounterOpts{
			Name: "chirp_chat_presence_broadcasts_total",
			Help: "Presence broadcasts pushed to all connections.",
		}),
		relayDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "chirp_chat_relay_delivered_total",
			Help: "Messages pushed to a live recipient connection.",
		}),
		relayMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "chirp_chat_relay_misses_total",
			Help: "Relay calls whose recipient had no live connection.",
		}),
		sendDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "chirp_chat_send_drops_total",
			Help: "Envelopes dropped because a client send queue was full.",
		}),
	}
}

func (m *Metrics) connAttached() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connDetached() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) online(n int) {
	if m != nil {
		m.onlineUsers.Set(float64(n))
	}
}

func (m *Metrics) broadcast() {
	if m != nil {
		m.presenceBroadcasts.Inc()
	}
}

func (m *Metrics) delivered() {
	if m != nil {
		m.relayDelivered.Inc()
	}
}

func (m *Metrics) missed() {
	if m != nil {
		m.relayMisses.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.sendDrops.Inc()
	}
}
