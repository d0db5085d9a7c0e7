package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run continuously, sleeping between cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, flags)
			if err != nil {
				return err
			}
			return a.scheduler.RunContinuous(ctx)
		},
	}
}
