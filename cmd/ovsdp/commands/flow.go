package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/cli/prompt"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Inspect the flow table",
}

var flowListCmd = &cobra.Command{
	Use:   "list",
	Short: "Dump the flow table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		flows, err := c.Flows(cmd.Context())
		if err != nil {
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		return p.Print(flowList(flows))
	},
}

var flushForce bool

var flowFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete every flow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.ConfirmUnless(flushForce, "Delete all flows")
		if err != nil || !ok {
			return err
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if err := c.FlushFlows(cmd.Context()); err != nil {
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		p.Success("Flow table flushed")
		return nil
	},
}

func init() {
	flowFlushCmd.Flags().BoolVarP(&flushForce, "force", "f", false, "skip confirmation")

	flowCmd.AddCommand(flowListCmd)
	flowCmd.AddCommand(flowFlushCmd)
}
