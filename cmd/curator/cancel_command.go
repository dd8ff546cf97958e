package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <source> <identifier> <lot>",
		Short: "Drop queued jobs for a provider item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := ctx.client().CancelPending(cmd.Context(), api.CancelRequest{
				Source:     args[0],
				Identifier: args[1],
				Lot:        args[2],
			})
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending jobs matched")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d pending job(s)\n", removed)
			return nil
		},
	}
}
