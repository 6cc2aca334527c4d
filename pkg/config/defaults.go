package config

import (
	"strings"
	"time"

	"github.com/marmos91/ovsdp/internal/bytesize"
	"github.com/marmos91/ovsdp/internal/datapath/event"
	"github.com/marmos91/ovsdp/internal/datapath/packet"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyDatapathDefaults(&cfg.Datapath)
	applyDeviceDefaults(&cfg.Device)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults. Tracing stays opt-in.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetricsDefaults fills the port only when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyDatapathDefaults(cfg *DatapathConfig) {
	if cfg.Name == "" {
		cfg.Name = ovs.DefaultDatapathName
	}
	if cfg.Index == 0 {
		cfg.Index = 1
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = session.DefaultCapacity
	}
	if cfg.EventQueueDepth == 0 {
		cfg.EventQueueDepth = event.DefaultDepth
	}
	if cfg.PacketQueueDepth == 0 {
		cfg.PacketQueueDepth = packet.DefaultDepth
	}
}

func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocketPath()
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = 64 * bytesize.KiB
	}
}

// GetDefaultConfig returns a Config with all default values applied. It
// backs `ovsdp config init` and runs without a config file.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
