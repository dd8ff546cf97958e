package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"curator/internal/identity"
	"curator/internal/media"
)

// Details is the full query surface for one canonical record.
type Details struct {
	Record     media.Record
	Identities []media.ProviderIdentity
}

// UpsertRecord commits the record, its provider identity, and its
// suggestions in one transaction. Stored fields survive when the incoming
// record omits them; present fields overwrite. Suggestions are replaced
// wholesale.
func (s *Store) UpsertRecord(ctx context.Context, record *media.Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if record.InternalID == "" {
		return errors.New("record missing internal id")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if err := upsertIdentityTx(ctx, tx, media.ProviderIdentity{
		Source:             record.Source,
		ExternalIdentifier: record.ExternalIdentifier,
		Lot:                record.Lot,
		InternalID:         record.InternalID,
		CreatedAt:          now,
	}); err != nil {
		return err
	}

	existing, err := recordTx(ctx, tx, record.InternalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	merged := *record
	if existing != nil {
		merged = mergeRecords(*existing, *record)
	}

	genres, err := marshalJSON(merged.Genres)
	if err != nil {
		return err
	}
	creators, err := marshalJSON(merged.Creators)
	if err != nil {
		return err
	}
	assets, err := marshalJSON(merged.Assets)
	if err != nil {
		return err
	}
	group, err := marshalJSON(merged.Group)
	if err != nil {
		return err
	}
	specifics, err := marshalJSON(merged.Specifics)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO media_records (
                internal_id, lot, title, description, source_url, provider_rating,
                publish_year, publish_date, is_nsfw, genres_json, creators_json,
                assets_json, group_json, specifics_json, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			merged.InternalID, string(merged.Lot), merged.Title,
			nullableString(merged.Description), nullableString(merged.SourceURL),
			merged.ProviderRating, merged.PublishYear, nullableTime(merged.PublishDate),
			nullableBool(merged.IsNsfw), genres, creators, assets, group, specifics,
			timestamp(now), timestamp(now),
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE media_records
             SET lot = ?, title = ?, description = ?, source_url = ?, provider_rating = ?,
                 publish_year = ?, publish_date = ?, is_nsfw = ?, genres_json = ?,
                 creators_json = ?, assets_json = ?, group_json = ?, specifics_json = ?,
                 updated_at = ?
             WHERE internal_id = ?`,
			string(merged.Lot), merged.Title,
			nullableString(merged.Description), nullableString(merged.SourceURL),
			merged.ProviderRating, merged.PublishYear, nullableTime(merged.PublishDate),
			nullableBool(merged.IsNsfw), genres, creators, assets, group, specifics,
			timestamp(now), merged.InternalID,
		)
	}
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM suggestions WHERE internal_id = ?`, merged.InternalID); err != nil {
		return fmt.Errorf("clear suggestions: %w", err)
	}
	for position, suggestion := range record.Suggestions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO suggestions (
                internal_id, position, lot, source, identifier, title, image, metadata_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			merged.InternalID, position, string(suggestion.Lot), string(suggestion.Source),
			suggestion.Identifier, suggestion.Title,
			nullableString(suggestion.Image), nullableString(suggestion.MetadataID),
		)
		if err != nil {
			return fmt.Errorf("write suggestion: %w", err)
		}
	}

	return commit(tx)
}

// mergeRecords overlays incoming onto stored: present incoming fields win,
// absent ones keep the stored value. Suggestions are handled by the caller.
func mergeRecords(stored, incoming media.Record) media.Record {
	merged := stored
	merged.Source = incoming.Source
	merged.ExternalIdentifier = incoming.ExternalIdentifier
	if incoming.Title != "" {
		merged.Title = incoming.Title
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.SourceURL != "" {
		merged.SourceURL = incoming.SourceURL
	}
	if incoming.ProviderRating > 0 {
		merged.ProviderRating = incoming.ProviderRating
	}
	if incoming.PublishYear > 0 {
		merged.PublishYear = incoming.PublishYear
	}
	if incoming.PublishDate != nil {
		merged.PublishDate = incoming.PublishDate
	}
	if incoming.IsNsfw != nil {
		merged.IsNsfw = incoming.IsNsfw
	}
	if len(incoming.Genres) > 0 {
		merged.Genres = incoming.Genres
	}
	if len(incoming.Creators) > 0 {
		merged.Creators = incoming.Creators
	}
	if len(incoming.Assets.Images) > 0 {
		merged.Assets.Images = incoming.Assets.Images
	}
	if len(incoming.Assets.Videos) > 0 {
		merged.Assets.Videos = incoming.Assets.Videos
	}
	if incoming.Group != nil {
		merged.Group = incoming.Group
	}
	merged.Specifics = mergeSpecifics(stored.Specifics, incoming.Specifics)
	return merged
}

// mergeSpecifics merges per-field within the lot's variant; an absent
// incoming variant keeps the stored one.
func mergeSpecifics(stored, incoming media.Specifics) media.Specifics {
	if incoming.IsZero() {
		return stored
	}
	if stored.IsZero() || stored.Lot() != incoming.Lot() {
		return incoming
	}
	merged := stored
	switch incoming.Lot() {
	case media.LotAnime:
		if incoming.Anime.Episodes > 0 {
			merged.Anime = incoming.Anime
		}
	case media.LotAudioBook:
		if incoming.AudioBook.Runtime > 0 {
			merged.AudioBook = incoming.AudioBook
		}
	case media.LotBook:
		if incoming.Book.Pages > 0 {
			merged.Book = incoming.Book
		}
	case media.LotManga:
		out := *stored.Manga
		if incoming.Manga.Volumes > 0 {
			out.Volumes = incoming.Manga.Volumes
		}
		if incoming.Manga.Chapters > 0 {
			out.Chapters = incoming.Manga.Chapters
		}
		merged.Manga = &out
	case media.LotMovie:
		if incoming.Movie.Runtime > 0 {
			merged.Movie = incoming.Movie
		}
	case media.LotPodcast:
		out := *stored.Podcast
		if len(incoming.Podcast.Episodes) > 0 {
			out.Episodes = incoming.Podcast.Episodes
		}
		if incoming.Podcast.TotalEpisodes > 0 {
			out.TotalEpisodes = incoming.Podcast.TotalEpisodes
		}
		merged.Podcast = &out
	case media.LotShow:
		if len(incoming.Show.Seasons) > 0 {
			merged.Show = incoming.Show
		}
	case media.LotVideoGame:
		if len(incoming.VideoGame.Platforms) > 0 {
			merged.VideoGame = incoming.VideoGame
		}
	case media.LotVisualNovel:
		if incoming.VisualNovel.Length > 0 {
			merged.VisualNovel = incoming.VisualNovel
		}
	}
	return merged
}

// MediaDetails returns the record, its suggestions, and its provider
// identities.
func (s *Store) MediaDetails(ctx context.Context, internalID string) (*Details, error) {
	record, err := s.record(ctx, internalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT lot, source, identifier, title, image, metadata_id
         FROM suggestions WHERE internal_id = ? ORDER BY position`, internalID)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lot, source, identifier, title string
			image, metadataID              sql.NullString
		)
		if err := rows.Scan(&lot, &source, &identifier, &title, &image, &metadataID); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		record.Suggestions = append(record.Suggestions, media.Suggestion{
			Lot:        media.Lot(lot),
			Source:     media.Source(source),
			Identifier: identifier,
			Title:      title,
			Image:      image.String,
			MetadataID: metadataID.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	identities, err := s.ListProviderIdentities(ctx, internalID)
	if err != nil {
		return nil, err
	}
	return &Details{Record: *record, Identities: identities}, nil
}

// FindByTitleYearLot lists match candidates of the lot whose publish year
// falls within tolerance of year. Records without a year always qualify, as
// does every record when year is unknown. Title scoring is the resolver's
// concern.
func (s *Store) FindByTitleYearLot(ctx context.Context, _ string, year, tolerance int, lot media.Lot) ([]identity.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT internal_id, title, publish_year FROM media_records
         WHERE lot = ? AND (? = 0 OR publish_year = 0 OR publish_year BETWEEN ? AND ?)`,
		string(lot), year, year-tolerance, year+tolerance)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []identity.Candidate
	for rows.Next() {
		var candidate identity.Candidate
		if err := rows.Scan(&candidate.InternalID, &candidate.Title, &candidate.PublishYear); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

func (s *Store) record(ctx context.Context, internalID string) (*media.Record, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return recordTx(ctx, tx, internalID)
}

func recordTx(ctx context.Context, tx *sql.Tx, internalID string) (*media.Record, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT internal_id, lot, title, description, source_url, provider_rating,
                publish_year, publish_date, is_nsfw, genres_json, creators_json,
                assets_json, group_json, specifics_json
         FROM media_records WHERE internal_id = ?`, internalID)

	var (
		record                     media.Record
		lot                        string
		description, sourceURL     sql.NullString
		publishDateRaw             sql.NullString
		isNsfw                     sql.NullInt64
		genres, creators, assets   sql.NullString
		group, specifics           sql.NullString
	)
	err := row.Scan(&record.InternalID, &lot, &record.Title, &description, &sourceURL,
		&record.ProviderRating, &record.PublishYear, &publishDateRaw, &isNsfw,
		&genres, &creators, &assets, &group, &specifics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", ErrNotFound, internalID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	record.Lot = media.Lot(lot)
	record.Description = description.String
	record.SourceURL = sourceURL.String
	if publishDateRaw.Valid {
		if published, err := parseTimeString(publishDateRaw.String); err == nil {
			record.PublishDate = &published
		}
	}
	if isNsfw.Valid {
		nsfw := isNsfw.Int64 != 0
		record.IsNsfw = &nsfw
	}
	if err := unmarshalJSON(genres, &record.Genres); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(creators, &record.Creators); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(assets, &record.Assets); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(group, &record.Group); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(specifics, &record.Specifics); err != nil {
		return nil, err
	}
	return &record, nil
}

func marshalJSON(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal record field: %w", err)
	}
	text := string(data)
	if text == "null" || text == "[]" || text == "{}" {
		return nil, nil
	}
	return text, nil
}

func unmarshalJSON(column sql.NullString, target any) error {
	if !column.Valid || column.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(column.String), target); err != nil {
		return fmt.Errorf("unmarshal record field: %w", err)
	}
	return nil
}
