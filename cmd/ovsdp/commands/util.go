package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/cli/output"
	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/pkg/config"
	"github.com/marmos91/ovsdp/pkg/dpclient"
)

// dialTimeout bounds connecting and the pid/datapath handshake.
const dialTimeout = 5 * time.Second

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource describes where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// connect dials the control device of a running switch. --socket wins
// over device.socket from the config. The caller closes the client.
func connect(cmd *cobra.Command) (*dpclient.Client, error) {
	path := socketPath
	var opts []dpclient.Option

	cfg, err := config.Load(cfgFile)
	switch {
	case err != nil && path == "":
		return nil, err
	case err == nil:
		if path == "" {
			path = cfg.Device.Socket
		}
		opts = append(opts, dpclient.WithDatapathName(cfg.Datapath.Name))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), dialTimeout)
	defer cancel()
	c, err := dpclient.Dial(ctx, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("is the switch running? %w", err)
	}
	return c, nil
}

func printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return nil, err
	}
	color := !noColor && os.Getenv("NO_COLOR") == ""
	return output.NewPrinter(cmd.OutOrStdout(), format, color), nil
}
