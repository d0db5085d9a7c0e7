package main

import (
	"github.com/spf13/cobra"
)

func newOnceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, flags)
			if err != nil {
				return err
			}
			return a.scheduler.RunOnce(ctx)
		},
	}
}
