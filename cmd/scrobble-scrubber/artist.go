package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArtistCmd(flags *globalFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "artist",
		Short: "Process an artist's scrobbles (up to max_tracks), ignoring the anchor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, flags)
			if err != nil {
				return err
			}
			return a.scheduler.RunArtist(ctx, name)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "artist name")
	return cmd
}
