package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <source> <identifier> <lot>",
		Short: "Synchronize one provider item and wait for the result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Refresh(cmd.Context(), api.RefreshRequest{
				Source:     args[0],
				Identifier: args[1],
				Lot:        args[2],
				Wait:       true,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch job.State {
			case "done":
				fmt.Fprintf(out, "Job %d done", job.ID)
				if job.InternalID != "" {
					fmt.Fprintf(out, ": media %s", job.InternalID)
				}
				fmt.Fprintln(out)
			case "failed":
				fmt.Fprintf(out, "Job %d failed: %s\n", job.ID, job.LastError)
			default:
				// The daemon gave up waiting; the job is still running.
				fmt.Fprintf(out, "Job %d still %s; check `curator jobs`\n", job.ID, job.State)
			}
			return nil
		},
	}
}
