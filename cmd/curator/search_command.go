package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "search <source> <query>",
		Short: "Search a provider by free text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[1]
			for _, extra := range args[2:] {
				query += " " + extra
			}
			resp, err := ctx.client().Search(cmd.Context(), args[0], query, page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Results) == 0 {
				fmt.Fprintf(out, "No results for %q on %s\n", resp.Query, resp.Source)
				return nil
			}

			rows := make([][]string, 0, len(resp.Results))
			for _, item := range resp.Results {
				year := ""
				if item.PublishYear > 0 {
					year = strconv.Itoa(item.PublishYear)
				}
				rows = append(rows, []string{item.Identifier, item.Title, year})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Identifier", "Title", "Year"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Result page")
	return cmd
}
