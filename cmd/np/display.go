package main

import (
	"context"

	"github.com/spf13/cobra"
)

func commitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit [transport]",
		Short: "Flush staged metadata to the display",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.UpdateDisplay(ctx, selector)
		},
	}
	return cmd
}
