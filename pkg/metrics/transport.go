package metrics

// TransportMetrics observes the control device socket: connection
// lifecycle and per-frame sizes. Pass nil to disable collection.
type TransportMetrics interface {
	// RecordConnectionAccepted counts an accepted connection.
	RecordConnectionAccepted()

	// RecordConnectionClosed counts a connection whose session was released.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts a connection closed because the
	// shutdown timeout expired.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the open connection gauge.
	SetActiveConnections(count int32)

	// RecordFrame records one served frame by control code name with its
	// input and reply sizes in bytes.
	RecordFrame(code string, inBytes, replyBytes int)
}

// newPrometheusTransportMetrics is set by pkg/metrics/prometheus; the
// indirection keeps this package free of the implementation.
var newPrometheusTransportMetrics func() TransportMetrics

// RegisterTransportMetricsConstructor is called by the prometheus
// subpackage during initialization.
func RegisterTransportMetricsConstructor(constructor func() TransportMetrics) {
	newPrometheusTransportMetrics = constructor
}

// NewTransportMetrics returns the Prometheus implementation, or nil when
// metrics are disabled or the prometheus subpackage is not linked in.
func NewTransportMetrics() TransportMetrics {
	if !IsEnabled() || newPrometheusTransportMetrics == nil {
		return nil
	}
	return newPrometheusTransportMetrics()
}
