package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/cli/output"
	"github.com/marmos91/ovsdp/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Output is YAML unless --output json is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath(cmd))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		if f, err := output.ParseFormat(format); err == nil && f == output.FormatJSON {
			return output.JSON(cmd.OutOrStdout(), cfg)
		}
		return output.YAML(cmd.OutOrStdout(), cfg)
	},
}
