package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <source> <identifier> <lot>",
		Short: "Queue a synchronization job without waiting",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Refresh(cmd.Context(), api.RefreshRequest{
				Source:     args[0],
				Identifier: args[1],
				Lot:        args[2],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d %s (%s/%s %s)\n",
				job.ID, job.State, job.Source, job.Lot, job.Identifier)
			return nil
		},
	}
}
