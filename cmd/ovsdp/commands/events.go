package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow port events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print port additions and removals as they happen",
	Long: `Join the port event group and print every event until interrupted.

Examples:
  ovsdp events watch
  ovsdp events watch -o json | jq .name`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		p, err := printer(cmd)
		if err != nil {
			return err
		}
		if err := c.SubscribeEvents(ctx); err != nil {
			return err
		}

		for {
			ev, err := c.NextEvent(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := p.Stream(eventRow(ev)); err != nil {
				return err
			}
		}
	},
}

func init() {
	eventsCmd.AddCommand(eventsWatchCmd)
}
