package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file holding every default value.

Examples:
  # Create $XDG_CONFIG_HOME/ovsdp/config.yaml
  ovsdp config init

  # Overwrite a custom file
  ovsdp config init --config /etc/ovsdp/config.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(cmd)
		var err error
		if path != "" {
			err = config.InitConfigToPath(path, initForce)
		} else {
			path, err = config.InitConfig(initForce)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
		_, _ = fmt.Fprintln(out, "\nStart the switch with: ovsdp start")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}
