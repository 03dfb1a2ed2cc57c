package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func artCommand() *cobra.Command {
	var (
		selector string
		uri      string
		file     string
		clear    bool
	)

	cmd := &cobra.Command{
		Use:   "art",
		Short: "Stage or clear thumbnail artwork",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			set := 0
			if uri != "" {
				set++
			}
			if file != "" {
				set++
			}
			if clear {
				set++
			}
			if set != 1 {
				return errors.New("exactly one of --uri, --file or --clear is required")
			}

			switch {
			case clear:
				return app.service.ClearThumbnail(ctx, selector)
			case uri != "":
				return app.service.SetThumbnailFile(ctx, selector, uri)
			default:
				return app.service.SetThumbnailData(ctx, selector, file)
			}
		},
	}

	cmd.Flags().StringVar(&selector, "on", "", "transport selector")
	cmd.Flags().StringVar(&uri, "uri", "", "artwork URI resolved on the node")
	cmd.Flags().StringVar(&file, "file", "", "local image sent inline")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear staged artwork")

	return cmd
}
