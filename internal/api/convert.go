package api

import (
	"curator/internal/media"
	"curator/internal/store"
)

// FromDetails converts a stored record plus its identities into the wire
// view.
func FromDetails(details *store.Details) MediaView {
	record := details.Record
	view := MediaView{
		InternalID:     record.InternalID,
		Lot:            string(record.Lot),
		Source:         string(record.Source),
		Identifier:     record.ExternalIdentifier,
		Title:          record.Title,
		Description:    record.Description,
		SourceURL:      record.SourceURL,
		ProviderRating: record.ProviderRating,
		PublishYear:    record.PublishYear,
		PublishDate:    record.PublishDate,
		IsNsfw:         record.IsNsfw,
		Genres:         record.Genres,
		Images:         record.Assets.Images,
		Specifics:      fromSpecifics(record.Specifics),
	}
	for _, group := range record.Creators {
		creatorGroup := CreatorGroupView{Role: group.Role}
		for _, creator := range group.Creators {
			creatorGroup.Creators = append(creatorGroup.Creators, CreatorView{
				Name:  creator.Name,
				Image: creator.Image,
			})
		}
		view.Creators = append(view.Creators, creatorGroup)
	}
	for _, video := range record.Assets.Videos {
		view.Videos = append(view.Videos, VideoView{VideoID: video.VideoID, Site: video.Site})
	}
	if record.Group != nil {
		view.Group = &GroupView{ID: record.Group.ID, Name: record.Group.Name, Part: record.Group.Part}
	}
	for _, suggestion := range record.Suggestions {
		view.Suggestions = append(view.Suggestions, SuggestionView{
			Lot:        string(suggestion.Lot),
			Source:     string(suggestion.Source),
			Identifier: suggestion.Identifier,
			Title:      suggestion.Title,
			Image:      suggestion.Image,
			MetadataID: suggestion.MetadataID,
		})
	}
	for _, pid := range details.Identities {
		view.Identities = append(view.Identities, IdentityView{
			Source:     string(pid.Source),
			Identifier: pid.ExternalIdentifier,
			Lot:        string(pid.Lot),
		})
	}
	return view
}

func fromSpecifics(specifics media.Specifics) *SpecificsView {
	switch {
	case specifics.Anime != nil:
		return &SpecificsView{Anime: &AnimeSpecificsView{Episodes: specifics.Anime.Episodes}}
	case specifics.AudioBook != nil:
		return &SpecificsView{AudioBook: &AudioBookSpecificsView{Runtime: specifics.AudioBook.Runtime}}
	case specifics.Book != nil:
		return &SpecificsView{Book: &BookSpecificsView{Pages: specifics.Book.Pages}}
	case specifics.Manga != nil:
		return &SpecificsView{Manga: &MangaSpecificsView{
			Volumes:  specifics.Manga.Volumes,
			Chapters: specifics.Manga.Chapters,
		}}
	case specifics.Movie != nil:
		return &SpecificsView{Movie: &MovieSpecificsView{Runtime: specifics.Movie.Runtime}}
	case specifics.Podcast != nil:
		return &SpecificsView{Podcast: &PodcastSpecificsView{
			TotalEpisodes: specifics.Podcast.TotalEpisodes,
			Episodes:      len(specifics.Podcast.Episodes),
		}}
	case specifics.Show != nil:
		episodes := 0
		for _, season := range specifics.Show.Seasons {
			episodes += len(season.Episodes)
		}
		return &SpecificsView{Show: &ShowSpecificsView{
			Seasons:  len(specifics.Show.Seasons),
			Episodes: episodes,
		}}
	case specifics.VideoGame != nil:
		return &SpecificsView{VideoGame: &VideoGameSpecificsView{Platforms: specifics.VideoGame.Platforms}}
	case specifics.VisualNovel != nil:
		return &SpecificsView{VisualNovel: &VisualNovelSpecificsView{Length: specifics.VisualNovel.Length}}
	default:
		return nil
	}
}

// FromJob converts a job row into the wire view.
func FromJob(job *store.Job) JobView {
	return JobView{
		ID:         job.ID,
		Source:     string(job.TargetSource),
		Identifier: job.TargetIdentifier,
		Lot:        string(job.TargetLot),
		InternalID: job.InternalID,
		Kind:       string(job.Kind),
		State:      string(job.State),
		Attempt:    job.Attempt,
		LastError:  job.LastError,
		NextRunAt:  job.NextRunAt,
		UpdatedAt:  job.UpdatedAt,
	}
}

// FromSearchItems converts provider search hits into the wire view.
func FromSearchItems(items []media.SearchItem) []SearchItemView {
	views := make([]SearchItemView, 0, len(items))
	for _, item := range items {
		views = append(views, SearchItemView{
			Identifier:  item.Identifier,
			Title:       item.Title,
			Image:       item.Image,
			PublishYear: item.PublishYear,
		})
	}
	return views
}
