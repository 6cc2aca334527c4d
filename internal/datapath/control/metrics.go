package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for the control device
// ============================================================================

// Metrics instruments control calls and session lifecycle.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// RequestsTotal counts completed calls by family, command, devop and
	// transport status.
	RequestsTotal *prometheus.CounterVec

	// ProtocolErrorsTotal counts replies carrying a protocol error.
	ProtocolErrorsTotal *prometheus.CounterVec

	// Duration observes handler latency, excluding pend waits.
	Duration *prometheus.HistogramVec

	// InUseRejections counts calls refused because the session was busy.
	InUseRejections prometheus.Counter

	// PendWaits counts pend waits by outcome: fulfilled, canceled, aborted.
	PendWaits *prometheus.CounterVec

	// SessionsOpen tracks the number of open sessions.
	SessionsOpen prometheus.Gauge

	// SessionsRejected counts opens refused because the registry was full.
	SessionsRejected prometheus.Counter

	// EventDrops and PacketDrops count queue overflow. They are handed to
	// the switch when it is built.
	EventDrops  prometheus.Counter
	PacketDrops prometheus.Counter
}

// NewMetrics creates and registers control metrics with reg. If reg is
// nil, metrics are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const ns = "ovsdp"
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "control",
			Name:      "requests_total",
			Help:      "Control calls by family, command, device operation and status",
		}, []string{"family", "command", "devop", "status"}),
		ProtocolErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "control",
			Name:      "protocol_errors_total",
			Help:      "Replies carrying a protocol error, by family, command and error",
		}, []string{"family", "command", "error"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "control",
			Name:      "duration_seconds",
			Help:      "Control call latency excluding pend waits",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"family", "command"}),
		InUseRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "control",
			Name:      "in_use_rejections_total",
			Help:      "Calls refused because another call was in flight on the session",
		}),
		PendWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "control",
			Name:      "pend_waits_total",
			Help:      "Pend waits by outcome",
		}, []string{"outcome"}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "sessions",
			Name:      "open",
			Help:      "Open control sessions",
		}),
		SessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "sessions",
			Name:      "rejected_total",
			Help:      "Session opens refused because the registry was full",
		}),
		EventDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "queues",
			Name:      "event_drops_total",
			Help:      "Port events dropped on queue overflow",
		}),
		PacketDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "queues",
			Name:      "packet_drops_total",
			Help:      "Upcalls dropped on queue overflow",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.RequestsTotal,
			m.ProtocolErrorsTotal,
			m.Duration,
			m.InUseRejections,
			m.PendWaits,
			m.SessionsOpen,
			m.SessionsRejected,
			m.EventDrops,
			m.PacketDrops,
		} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	}
	return m
}

func (m *Metrics) recordRequest(family, command string, op DevOp, status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(family, command, op.String(), status.String()).Inc()
	if family != "" {
		m.Duration.WithLabelValues(family, command).Observe(d.Seconds())
	}
}

func (m *Metrics) recordProtocolError(family, command, code string) {
	if m == nil {
		return
	}
	m.ProtocolErrorsTotal.WithLabelValues(family, command, code).Inc()
}

func (m *Metrics) recordInUse() {
	if m == nil {
		return
	}
	m.InUseRejections.Inc()
}

func (m *Metrics) recordPend(outcome string) {
	if m == nil {
		return
	}
	m.PendWaits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.SessionsOpen.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.SessionsOpen.Dec()
}

func (m *Metrics) sessionRejected() {
	if m == nil {
		return
	}
	m.SessionsRejected.Inc()
}
