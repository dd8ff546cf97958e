package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:   %t (pid %d)\n", status.Running, status.PID)
			fmt.Fprintf(out, "Database:  %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Providers: %s\n", strings.Join(status.Sources, ", "))

			if len(status.JobCounts) == 0 {
				return nil
			}
			states := make([]string, 0, len(status.JobCounts))
			for state := range status.JobCounts {
				states = append(states, state)
			}
			sort.Strings(states)
			rows := make([][]string, 0, len(states))
			for _, state := range states {
				rows = append(rows, []string{state, strconv.Itoa(status.JobCounts[state])})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"State", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
