package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buttonCommand() *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "button <name> <on|off>",
		Short: "Enable or disable a transport button",
		Long:  "Enable or disable a transport button: play, pause, stop, fastforward, rewind, next or previous.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)

			var enabled bool
			switch args[1] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("state must be on or off, got %q", args[1])
			}

			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.SetButton(ctx, selector, args[0], enabled)
		},
	}

	cmd.Flags().StringVar(&selector, "on", "", "transport selector")

	return cmd
}
