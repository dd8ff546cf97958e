package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List synchronization jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ctx.client().Jobs(cmd.Context(), states...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.Source,
					job.Lot,
					job.Identifier,
					job.Kind,
					job.State,
					strconv.Itoa(job.Attempt),
					job.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Source", "Lot", "Identifier", "Kind", "State", "Attempt", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by job state (repeatable)")
	return cmd
}
