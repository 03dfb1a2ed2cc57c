package main

import (
	"context"

	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	var watch bool
	var live bool

	cmd := &cobra.Command{
		Use:   "status [transport]",
		Short: "Show transport status",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			selector := ""
			if len(args) == 1 {
				selector = args[0]
			}
			if watch {
				return watchStatus(app, selector)
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			if live {
				result, err := app.service.GetState(ctx, selector)
				if err != nil {
					return err
				}
				return app.printer.Print(result)
			}
			result, err := app.service.Status(ctx, selector)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "watch status updates")
	cmd.Flags().BoolVar(&live, "live", false, "query the node instead of the retained state")

	return cmd
}

func watchStatus(app *app, selector string) error {
	ctx := context.Background()
	initial, err := app.service.Status(ctx, selector)
	if err != nil {
		return err
	}
	if err := app.printer.Print(initial); err != nil {
		return err
	}

	states, events, errs, err := app.service.WatchStatus(ctx, selector)
	if err != nil {
		return err
	}

	for {
		select {
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := app.printer.Print(state); err != nil {
				return err
			}
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := app.printer.Print(evt); err != nil {
				return err
			}
		case err := <-errs:
			if err != nil {
				return err
			}
		}
	}
}
