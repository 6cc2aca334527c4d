package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/ovsdp/internal/bytesize"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_Datapath(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DatapathConfig)
	}{
		{"empty name", func(d *DatapathConfig) { d.Name = "" }},
		{"name too long", func(d *DatapathConfig) { d.Name = "a-very-long-datapath" }},
		{"zero index", func(d *DatapathConfig) { d.Index = 0 }},
		{"negative sessions", func(d *DatapathConfig) { d.MaxSessions = -1 }},
		{"zero event depth", func(d *DatapathConfig) { d.EventQueueDepth = 0 }},
		{"zero packet depth", func(d *DatapathConfig) { d.PacketQueueDepth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(&cfg.Datapath)
			if err := Validate(cfg); err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestValidate_MissingSocket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Device.Socket = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for missing socket path")
	}
}

func TestValidate_ReadBufferRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Device.ReadBufferSize = 512

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for tiny read buffer")
	}
	if !strings.Contains(err.Error(), "read_buffer_size") {
		t.Errorf("Expected read_buffer_size error, got: %v", err)
	}

	if !errors.Is(err, bytesize.ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got: %v", err)
	}

	cfg.Device.ReadBufferSize = ReadBufferRange.Max + 1
	if err := Validate(cfg); !errors.Is(err, bytesize.ErrOutOfRange) {
		t.Errorf("Expected oversized read buffer to be rejected, got: %v", err)
	}

	for _, size := range []bytesize.ByteSize{ReadBufferRange.Min, 1 * bytesize.MiB, ReadBufferRange.Max} {
		cfg.Device.ReadBufferSize = size
		if err := Validate(cfg); err != nil {
			t.Errorf("Expected %s read buffer to be valid, got: %v", size, err)
		}
	}
}

func TestValidate_MoreConnectionsThanSessions(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Datapath.MaxSessions = 4
	cfg.Device.MaxConnections = 8

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when connections exceed sessions")
	}
}

func TestValidate_TelemetryEnabledWithoutEndpoint(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for telemetry enabled without endpoint")
	}
	if !strings.Contains(err.Error(), "Endpoint") {
		t.Errorf("Expected error about telemetry endpoint, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate out of range")
	}
}

func TestValidate_UnknownProfileType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown profile type")
	}
}

func TestValidate_LogLevelNormalization(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "WARN", "error", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("Validation failed for level %q: %v", level, err)
		}
		if cfg.Logging.Level != level {
			t.Errorf("Expected level to remain %q after validation, got %q", level, cfg.Logging.Level)
		}
	}

	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected ApplyDefaults to normalize 'info' to 'INFO', got %q", cfg.Logging.Level)
	}
}
