package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/datapath"
	"github.com/marmos91/ovsdp/internal/datapath/control"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/telemetry"
	"github.com/marmos91/ovsdp/internal/transport"
	"github.com/marmos91/ovsdp/pkg/config"
	"github.com/marmos91/ovsdp/pkg/metrics"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/ovsdp/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the switch in the foreground",
	Long: `Start the switch: build the datapath, open the control device socket
and serve clients until interrupted.

Without a config file the defaults are used. Environment variables
override both, e.g. OVSDP_LOGGING_LEVEL=DEBUG.

Examples:
  # Start with the default config location
  ovsdp start

  # Start with a custom config file
  ovsdp start --config /etc/ovsdp/config.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.SetDatapath(cfg.Datapath.Name, cfg.Datapath.Index)
	dpID := telemetry.Datapath{Name: cfg.Datapath.Name, Index: cfg.Datapath.Index}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ovsdp",
		ServiceVersion: Version,
		Datapath:       dpID,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "ovsdp",
		ServiceVersion: Version,
		Datapath:       dpID,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Configuration loaded", "source", getConfigSource(cfgFile),
		"level", cfg.Logging.Level, "format", cfg.Logging.Format)

	var (
		dpOpts   []datapath.Option
		ctrlOpts = []control.Option{control.WithMaxSessions(cfg.Datapath.MaxSessions)}
	)
	if cfg.Metrics.Enabled {
		// The registry must exist before collectors are built.
		metrics.InitRegistry()
		cm := control.NewMetrics(metrics.GetRegistry())
		dpOpts = append(dpOpts, datapath.WithDropCounters(cm.EventDrops, cm.PacketDrops))
		ctrlOpts = append(ctrlOpts, control.WithMetrics(cm))
	}

	sw, err := datapath.New(datapath.Config{
		Name:             cfg.Datapath.Name,
		Index:            cfg.Datapath.Index,
		EventQueueDepth:  cfg.Datapath.EventQueueDepth,
		PacketQueueDepth: cfg.Datapath.PacketQueueDepth,
	}, dpOpts...)
	if err != nil {
		return fmt.Errorf("failed to create datapath: %w", err)
	}
	ctrl := control.New(sw, ctrlOpts...)

	if err := os.MkdirAll(filepath.Dir(cfg.Device.Socket), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	var recorder transport.MetricsRecorder
	if tm := metrics.NewTransportMetrics(); tm != nil {
		recorder = tm
	}
	srv := transport.NewServer(transport.Config{
		Address:            cfg.Device.Socket,
		MaxConnections:     cfg.Device.MaxConnections,
		ReadBufferSize:     cfg.Device.ReadBufferSize.Int(),
		ShutdownTimeout:    cfg.ShutdownTimeout,
		MetricsLogInterval: cfg.Device.MetricsLogInterval,
	}, ctrl, recorder)

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(metrics.ServerConfig{
			Port:         cfg.Metrics.Port,
			ReadyFunc:    sw.Ready,
			SessionsFunc: func() any { return ctrl.Report() },
		})
		go func() {
			if err := metricsSrv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", logger.Err(err))
			}
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	if cfgFile != "" {
		if err := config.Watch(ctx, cfgFile, applyReload); err != nil {
			logger.Warn("Config reload disabled", logger.Err(err))
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	// Clients may connect once the socket exists; the datapath answers
	// only after activation.
	_ = srv.Addr()
	sw.Activate()
	logger.Info("Switch is running. Press Ctrl+C to stop.",
		"datapath", cfg.Datapath.Name, "index", cfg.Datapath.Index)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown")
	case runErr = <-serveErr:
		serveErr = nil
	}

	sw.Deactivate()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("Control device stop", logger.Err(err))
	}
	if serveErr != nil {
		runErr = <-serveErr
	}
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Session shutdown", logger.Err(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("Metrics server stop", logger.Err(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Switch stopped")
	return nil
}

// applyReload applies the settings that may change while running.
func applyReload(cfg *config.Config) {
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
}
