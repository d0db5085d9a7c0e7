package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLastNCmd(flags *globalFlags) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "last-n",
		Short: "Process the N newest scrobbles, ignoring the anchor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n <= 0 {
				return fmt.Errorf("--tracks must be positive")
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx, flags)
			if err != nil {
				return err
			}
			return a.scheduler.RunLastN(ctx, n)
		},
	}
	cmd.Flags().IntVar(&n, "tracks", 0, "number of newest scrobbles to process")
	return cmd
}
