// Package commands implements the ovsdp command line: the switch itself
// (start) and a client for its control device.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/cmd/ovsdp/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile    string
	socketPath string
	outputFmt  string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "ovsdp",
	Short: "ovsdp - virtual switch control device",
	Long: `ovsdp runs a virtual switch datapath and exposes its netlink-style
control device on a Unix socket. The same binary inspects and manages a
running switch: datapath, ports, flows and port events.

Use "ovsdp [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ovsdp/config.yaml)")
	pf.StringVar(&socketPath, "socket", "", "control socket (default: device.socket from the config)")
	pf.StringVarP(&outputFmt, "output", "o", "table", "output format (table|json|yaml)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(dpCmd)
	rootCmd.AddCommand(vportCmd)
	rootCmd.AddCommand(flowCmd)
	rootCmd.AddCommand(eventsCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
