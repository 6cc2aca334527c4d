package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.MustLoad(configPath(cmd))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (datapath %s, socket %s)\n",
			cfg.Datapath.Name, cfg.Device.Socket)
		return nil
	},
}
