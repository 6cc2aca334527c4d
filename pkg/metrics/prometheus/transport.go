package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/ovsdp/pkg/metrics"
)

func init() {
	metrics.RegisterTransportMetricsConstructor(NewTransportMetrics)
}

// transportMetrics is the Prometheus implementation of
// metrics.TransportMetrics.
type transportMetrics struct {
	accepted    prometheus.Counter
	closed      prometheus.Counter
	forceClosed prometheus.Counter
	active      prometheus.Gauge
	frames      *prometheus.CounterVec
	inBytes     *prometheus.HistogramVec
	replyBytes  *prometheus.HistogramVec
}

// frameSizeBuckets spans a bare header up to the largest frame.
var frameSizeBuckets = []float64{
	24,     // header only
	64,     // small transaction
	256,    // vport record
	1024,   // flow record
	4096,   // small buffer class
	16384,  // upcall
	65536,  // medium buffer class
	262144, // max frame
}

// NewTransportMetrics returns collectors registered on metrics.GetRegistry,
// or nil when metrics are disabled.
func NewTransportMetrics() metrics.TransportMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &transportMetrics{
		accepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ovsdp_transport_connections_accepted_total",
			Help: "Total control device connections accepted",
		}),
		closed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ovsdp_transport_connections_closed_total",
			Help: "Total control device connections closed",
		}),
		forceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ovsdp_transport_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout",
		}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ovsdp_transport_connections_active",
			Help: "Open control device connections",
		}),
		frames: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ovsdp_transport_frames_total",
			Help: "Frames served by control code",
		}, []string{"code"}),
		inBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ovsdp_transport_frame_input_bytes",
			Help:    "Request input sizes",
			Buckets: frameSizeBuckets,
		}, []string{"code"}),
		replyBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ovsdp_transport_frame_reply_bytes",
			Help:    "Reply sizes",
			Buckets: frameSizeBuckets,
		}, []string{"code"}),
	}
}

func (m *transportMetrics) RecordConnectionAccepted()    { m.accepted.Inc() }
func (m *transportMetrics) RecordConnectionClosed()      { m.closed.Inc() }
func (m *transportMetrics) RecordConnectionForceClosed() { m.forceClosed.Inc() }

func (m *transportMetrics) SetActiveConnections(count int32) {
	m.active.Set(float64(count))
}

func (m *transportMetrics) RecordFrame(code string, inBytes, replyBytes int) {
	m.frames.WithLabelValues(code).Inc()
	m.inBytes.WithLabelValues(code).Observe(float64(inBytes))
	m.replyBytes.WithLabelValues(code).Observe(float64(replyBytes))
}
