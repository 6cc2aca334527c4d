package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/cli/output"
)

var dpCmd = &cobra.Command{
	Use:   "dp",
	Short: "Inspect the datapath",
}

var dpShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show datapath identity and counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		dp, err := c.Datapath(cmd.Context())
		if err != nil {
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		if p.Format() == output.FormatTable {
			return output.KeyValue(p.Writer(), datapathPairs(dp))
		}
		return p.Print(dp)
	},
}

var dpSetUpcallCmd = &cobra.Command{
	Use:   "set-upcall-pid PID",
	Short: "Set the session that receives datapath upcalls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if _, err := c.SetUpcallPID(cmd.Context(), uint32(pid)); err != nil {
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		p.Success("Upcall pid set to " + args[0])
		return nil
	},
}

func init() {
	dpCmd.AddCommand(dpShowCmd)
	dpCmd.AddCommand(dpSetUpcallCmd)
}
