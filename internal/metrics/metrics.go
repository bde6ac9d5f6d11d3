package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the matchmaking collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	QueueDepth         *prometheus.GaugeVec
	LiveSessions       prometheus.Gauge
	SessionsCreated    prometheus.Counter
	SessionsEnded      *prometheus.CounterVec
	MessagesRelayed    prometheus.Counter
	Participants       *prometheus.CounterVec
	StoreWriteFailures *prometheus.CounterVec
	RateLimited        prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchmaking_queue_depth",
			Help: "Participants currently waiting, per group.",
		}, []string{"group"}),
		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "matchmaking_live_sessions",
			Help: "Sessions held in memory, including recently ended ones awaiting removal.",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "matchmaking_sessions_created_total",
			Help: "Sessions created by the matchmaker.",
		}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchmaking_sessions_ended_total",
			Help: "Sessions ended, by completion reason.",
		}, []string{"reason"}),
		MessagesRelayed: f.NewCounter(prometheus.CounterOpts{
			Name: "matchmaking_messages_relayed_total",
			Help: "Chat messages accepted and relayed.",
		}),
		Participants: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchmaking_participants_registered_total",
			Help: "Survey submissions registered, by classification.",
		}, []string{"classification"}),
		StoreWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "store_write_failures_total",
			Help: "Durable store writes that failed, by collection.",
		}, []string{"collection"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "realtime_events_rate_limited_total",
			Help: "Inbound realtime events dropped by the per-connection limiter.",
		}),
	}
}

func (m *Metrics) SetQueueDepth(group string, n int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(group).Set(float64(n))
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.LiveSessions.Inc()
}

func (m *Metrics) SessionEnded(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionRemoved() {
	if m == nil {
		return
	}
	m.LiveSessions.Dec()
}

func (m *Metrics) MessageRelayed() {
	if m == nil {
		return
	}
	m.MessagesRelayed.Inc()
}

func (m *Metrics) ParticipantRegistered(classification string) {
	if m == nil {
		return
	}
	m.Participants.WithLabelValues(classification).Inc()
}

func (m *Metrics) StoreWriteFailed(collection string) {
	if m == nil {
		return
	}
	m.StoreWriteFailures.WithLabelValues(collection).Inc()
}

func (m *Metrics) EventRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
