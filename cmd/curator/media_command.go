package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "media <internal-id>",
		Short: "Show one canonical media record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Media(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMediaView(cmd, view)
			return nil
		},
	}
}

func printMediaView(cmd *cobra.Command, view *api.MediaView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", view.Title, view.Lot)
	fmt.Fprintf(out, "  id:       %s\n", view.InternalID)
	fmt.Fprintf(out, "  provider: %s/%s\n", view.Source, view.Identifier)
	if view.PublishYear > 0 {
		fmt.Fprintf(out, "  year:     %d\n", view.PublishYear)
	}
	if view.PublishDate != nil {
		fmt.Fprintf(out, "  released: %s\n", view.PublishDate.Format(time.DateOnly))
	}
	if view.ProviderRating > 0 {
		fmt.Fprintf(out, "  rating:   %.1f\n", view.ProviderRating)
	}
	if len(view.Genres) > 0 {
		fmt.Fprintf(out, "  genres:   %s\n", strings.Join(view.Genres, ", "))
	}
	if view.Group != nil {
		fmt.Fprintf(out, "  group:    %s (part %d)\n", view.Group.Name, view.Group.Part)
	}
	if view.SourceURL != "" {
		fmt.Fprintf(out, "  url:      %s\n", view.SourceURL)
	}
	if line := specificsLine(view.Specifics); line != "" {
		fmt.Fprintf(out, "  details:  %s\n", line)
	}
	if view.Description != "" {
		fmt.Fprintf(out, "\n%s\n", view.Description)
	}

	for _, group := range view.Creators {
		names := make([]string, 0, len(group.Creators))
		for _, creator := range group.Creators {
			names = append(names, creator.Name)
		}
		fmt.Fprintf(out, "\n%s: %s", group.Role, strings.Join(names, ", "))
	}
	if len(view.Creators) > 0 {
		fmt.Fprintln(out)
	}

	if len(view.Identities) > 0 {
		fmt.Fprintln(out, "\nProvider identities:")
		for _, id := range view.Identities {
			fmt.Fprintf(out, "  %s/%s (%s)\n", id.Source, id.Identifier, id.Lot)
		}
	}

	if len(view.Suggestions) > 0 {
		rows := make([][]string, 0, len(view.Suggestions))
		for _, s := range view.Suggestions {
			rows = append(rows, []string{s.Title, s.Lot, s.Source, s.Identifier})
		}
		fmt.Fprintln(out, "\nSuggestions:")
		fmt.Fprintln(out, renderTable(
			[]string{"Title", "Lot", "Source", "Identifier"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
		))
	}
}

func specificsLine(s *api.SpecificsView) string {
	if s == nil {
		return ""
	}
	switch {
	case s.Anime != nil:
		return fmt.Sprintf("%d episodes", s.Anime.Episodes)
	case s.AudioBook != nil:
		return fmt.Sprintf("%d min runtime", s.AudioBook.Runtime)
	case s.Book != nil:
		return fmt.Sprintf("%d pages", s.Book.Pages)
	case s.Manga != nil:
		return fmt.Sprintf("%d volumes, %d chapters", s.Manga.Volumes, s.Manga.Chapters)
	case s.Movie != nil:
		return fmt.Sprintf("%d min runtime", s.Movie.Runtime)
	case s.Podcast != nil:
		return fmt.Sprintf("%d episodes", s.Podcast.TotalEpisodes)
	case s.Show != nil:
		return fmt.Sprintf("%d seasons, %d episodes", s.Show.Seasons, s.Show.Episodes)
	case s.VideoGame != nil:
		return strings.Join(s.VideoGame.Platforms, ", ")
	case s.VisualNovel != nil:
		return fmt.Sprintf("%d min length", s.VisualNovel.Length)
	}
	return ""
}
