package telemetry

import (
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// Datapath identifies the switch a process serves. It is stamped on the
// trace resource and on every profile so output from several switches can
// be told apart.
type Datapath struct {
	Name  string
	Index int32
}

func (d Datapath) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDatapath, d.Name),
		DpIfIndex(d.Index),
	}
}

func (d Datapath) tags() map[string]string {
	return map[string]string{
		"datapath": d.Name,
		"dp_index": strconv.FormatInt(int64(d.Index), 10),
	}
}

// Config holds OpenTelemetry configuration
type Config struct {
	Enabled bool

	// ServiceName is reported as service.name
	ServiceName string

	ServiceVersion string

	Datapath Datapath

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "ovsdp",
		ServiceVersion: "dev",
		Datapath:       Datapath{Name: "ovs-system", Index: 1},
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
