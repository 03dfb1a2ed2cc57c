package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/soren-m/now_playing/pkg/np"
)

func metaCommand() *cobra.Command {
	var (
		selector  string
		mediaType string
		title     string
		artist    string
		album     string
		commit    bool
	)

	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Stage display metadata",
		Long:  "Stage display metadata on the transport node. Only the given flags change; omitted fields keep their current value. Use --commit to flush the display in the same call.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			body := np.SetMetadataBody{}
			if cmd.Flags().Changed("media-type") {
				body.MediaType = &mediaType
			}
			if cmd.Flags().Changed("title") {
				body.Title = &title
			}
			if cmd.Flags().Changed("artist") {
				body.Artist = &artist
			}
			if cmd.Flags().Changed("album") {
				body.Album = &album
			}
			return app.service.SetMetadata(ctx, selector, body, commit)
		},
	}

	cmd.Flags().StringVar(&selector, "on", "", "transport selector")
	cmd.Flags().StringVar(&mediaType, "media-type", "", "media type (music|video|image)")
	cmd.Flags().StringVar(&title, "title", "", "track title")
	cmd.Flags().StringVar(&artist, "artist", "", "artist name")
	cmd.Flags().StringVar(&album, "album", "", "album title")
	cmd.Flags().BoolVar(&commit, "commit", false, "flush the display after staging")

	return cmd
}
