package config

import (
	"testing"
	"time"

	"github.com/marmos91/ovsdp/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Datapath(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Datapath.Name != "ovs-system" {
		t.Errorf("Expected default datapath name, got %q", cfg.Datapath.Name)
	}
	if cfg.Datapath.Index != 1 {
		t.Errorf("Expected default index 1, got %d", cfg.Datapath.Index)
	}
	if cfg.Datapath.MaxSessions != 512 {
		t.Errorf("Expected default max sessions 512, got %d", cfg.Datapath.MaxSessions)
	}
}

func TestApplyDefaults_Device(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Device.Socket != "/run/user/1000/ovsdp/control.sock" {
		t.Errorf("Expected socket under XDG_RUNTIME_DIR, got %q", cfg.Device.Socket)
	}
	if cfg.Device.ReadBufferSize != 64*bytesize.KiB {
		t.Errorf("Expected default read buffer 64KiB, got %s", cfg.Device.ReadBufferSize)
	}
}

func TestApplyDefaults_MetricsPortOnlyWhenEnabled(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no port for disabled metrics, got %d", cfg.Metrics.Port)
	}

	cfg = &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/ovsdp.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Datapath: DatapathConfig{
			Name:            "br-int",
			Index:           12,
			EventQueueDepth: 8,
		},
		Device: DeviceConfig{Socket: "/var/run/ovsdp.sock"},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/ovsdp.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Datapath.Name != "br-int" || cfg.Datapath.Index != 12 || cfg.Datapath.EventQueueDepth != 8 {
		t.Errorf("Expected explicit datapath values to be preserved, got %+v", cfg.Datapath)
	}
	if cfg.Device.Socket != "/var/run/ovsdp.sock" {
		t.Errorf("Expected explicit socket to be preserved, got %q", cfg.Device.Socket)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
