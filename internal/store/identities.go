package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"curator/internal/identity"
	"curator/internal/media"
)

// FindProviderIdentity returns the internal id bound to the provider key, or
// identity.ErrNoIdentity when none exists.
func (s *Store) FindProviderIdentity(ctx context.Context, source media.Source, externalID string, lot media.Lot) (string, error) {
	var internalID string
	err := s.db.QueryRowContext(ctx,
		`SELECT internal_id FROM provider_identities
         WHERE source = ? AND external_identifier = ? AND lot = ?`,
		string(source), externalID, string(lot)).Scan(&internalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s/%s/%s", identity.ErrNoIdentity, source, externalID, lot)
	}
	if err != nil {
		return "", fmt.Errorf("query identity: %w", err)
	}
	return internalID, nil
}

// UpsertProviderIdentity binds the provider key to an internal id. Binding is
// permanent: an attempt to remap an existing key to a different internal id
// fails with ErrConflict.
func (s *Store) UpsertProviderIdentity(ctx context.Context, pid media.ProviderIdentity) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertIdentityTx(ctx, tx, pid); err != nil {
		return err
	}
	return commit(tx)
}

func upsertIdentityTx(ctx context.Context, tx *sql.Tx, pid media.ProviderIdentity) error {
	var existing string
	err := tx.QueryRowContext(ctx,
		`SELECT internal_id FROM provider_identities
         WHERE source = ? AND external_identifier = ? AND lot = ?`,
		string(pid.Source), pid.ExternalIdentifier, string(pid.Lot)).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt := pid.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO provider_identities (source, external_identifier, lot, internal_id, created_at)
             VALUES (?, ?, ?, ?, ?)`,
			string(pid.Source), pid.ExternalIdentifier, string(pid.Lot), pid.InternalID, timestamp(createdAt))
		if err != nil {
			return fmt.Errorf("write identity: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("query identity: %w", err)
	case existing != pid.InternalID:
		return fmt.Errorf("%w: %s/%s/%s is bound to %s, refusing remap to %s",
			ErrConflict, pid.Source, pid.ExternalIdentifier, pid.Lot, existing, pid.InternalID)
	default:
		return nil
	}
}

// ListIdentitiesBySource returns every known binding for the source, oldest
// first. The recurring freshness sweep walks this list to seed refresh jobs.
func (s *Store) ListIdentitiesBySource(ctx context.Context, source media.Source) ([]media.ProviderIdentity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, external_identifier, lot, internal_id, created_at
         FROM provider_identities WHERE source = ?
         ORDER BY created_at, external_identifier`, string(source))
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()
	return collectIdentities(rows)
}

// ListProviderIdentities returns every provider binding for the internal id.
func (s *Store) ListProviderIdentities(ctx context.Context, internalID string) ([]media.ProviderIdentity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, external_identifier, lot, internal_id, created_at
         FROM provider_identities WHERE internal_id = ?
         ORDER BY source, external_identifier`, internalID)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()
	return collectIdentities(rows)
}

func collectIdentities(rows *sql.Rows) ([]media.ProviderIdentity, error) {
	var identities []media.ProviderIdentity
	for rows.Next() {
		var (
			pid                  media.ProviderIdentity
			source, lot, created string
		)
		if err := rows.Scan(&source, &pid.ExternalIdentifier, &lot, &pid.InternalID, &created); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		pid.Source = media.Source(source)
		pid.Lot = media.Lot(lot)
		if createdAt, err := parseTimeString(created); err == nil {
			pid.CreatedAt = createdAt
		}
		identities = append(identities, pid)
	}
	return identities, rows.Err()
}
