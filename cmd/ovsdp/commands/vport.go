package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/ovsdp/internal/cli/prompt"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
	"github.com/marmos91/ovsdp/pkg/dpclient"
)

var vportCmd = &cobra.Command{
	Use:     "vport",
	Aliases: []string{"port"},
	Short:   "Manage datapath ports",
}

var vportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		ports, err := c.Vports(cmd.Context())
		if err != nil {
			return err
		}
		return printVports(cmd, ports...)
	},
}

var vportShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one port",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		v, err := c.Vport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printVports(cmd, v)
	},
}

var (
	addType      string
	addPortNo    uint32
	addUpcallPID uint32
)

var vportAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a port",
	Long: `Create a port on the datapath.

Examples:
  ovsdp vport add vif1 --type netdev
  ovsdp vport add tap0 --type internal --port-no 7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := ovs.ParsePortType(addType)
		if err != nil {
			return err
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		v, err := c.NewVport(cmd.Context(), dpclient.VportSpec{
			Name:      args[0],
			Type:      typ,
			PortNo:    addPortNo,
			UpcallPID: addUpcallPID,
		})
		if err != nil {
			return err
		}
		return printVports(cmd, v)
	},
}

var setUpcallPID uint32

var vportSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Change a port's upcall pid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		v, err := c.SetVport(cmd.Context(), args[0], setUpcallPID)
		if err != nil {
			return err
		}
		return printVports(cmd, v)
	},
}

var delForce bool

var vportDelCmd = &cobra.Command{
	Use:     "del NAME",
	Aliases: []string{"delete", "rm"},
	Short:   "Delete a port",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := prompt.ConfirmUnless(delForce, fmt.Sprintf("Delete port %s", args[0]))
		if err != nil || !ok {
			return err
		}
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if _, err := c.DelVport(cmd.Context(), args[0]); err != nil {
			if dpclient.IsNotFound(err) {
				return fmt.Errorf("port %s does not exist", args[0])
			}
			return err
		}
		p, err := printer(cmd)
		if err != nil {
			return err
		}
		p.Success("Port " + args[0] + " deleted")
		return nil
	},
}

func printVports(cmd *cobra.Command, ports ...dpclient.Vport) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	return p.Print(vportList(ports))
}

func init() {
	vportAddCmd.Flags().StringVarP(&addType, "type", "t", "netdev", "port type (netdev|internal|gre|vxlan|geneve|stt)")
	vportAddCmd.Flags().Uint32Var(&addPortNo, "port-no", 0, "requested port number (0 picks one)")
	vportAddCmd.Flags().Uint32Var(&addUpcallPID, "upcall-pid", 0, "session receiving this port's upcalls")

	vportSetCmd.Flags().Uint32Var(&setUpcallPID, "upcall-pid", 0, "session receiving this port's upcalls")
	_ = vportSetCmd.MarkFlagRequired("upcall-pid")

	vportDelCmd.Flags().BoolVarP(&delForce, "force", "f", false, "skip confirmation")

	vportCmd.AddCommand(vportListCmd)
	vportCmd.AddCommand(vportShowCmd)
	vportCmd.AddCommand(vportAddCmd)
	vportCmd.AddCommand(vportSetCmd)
	vportCmd.AddCommand(vportDelCmd)
}
