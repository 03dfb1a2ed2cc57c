package main

import (
	"context"

	"github.com/spf13/cobra"
)

func playbackCommand() *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "playback <status>",
		Short: "Set the playback status",
		Long:  "Set the playback status shown by the OS controls: closed, stopped, playing, paused or changing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.SetPlayback(ctx, selector, args[0])
		},
	}

	cmd.Flags().StringVar(&selector, "on", "", "transport selector")

	return cmd
}
