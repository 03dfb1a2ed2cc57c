package main

import (
	"context"

	"github.com/spf13/cobra"
)

func timelineCommand() *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "timeline <start> <end> <position>",
		Short: "Set timeline properties",
		Long:  "Set the timeline shown by the OS controls. Values are milliseconds or Go durations (\"3m20s\"). The seek range is pinned to [start, end] on the node.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.SetTimeline(ctx, selector, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVar(&selector, "on", "", "transport selector")

	return cmd
}
