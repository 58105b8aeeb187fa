package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/originmark/provenance/internal/models"
)

// ContentRepository mirrors on-chain registrations into the content store so
// API reads and reporting do not need a ledger round trip.
type ContentRepository struct {
	db *sqlx.DB
}

func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Upsert inserts or refreshes the record for an entry's content hash.
func (r *ContentRepository) Upsert(ctx context.Context, entry models.ContentEntry) error {
	query := `
		INSERT INTO content_records (content_hash, creator, manifest_uri, ledger_timestamp, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (content_hash) DO UPDATE
		SET creator = EXCLUDED.creator,
		    manifest_uri = EXCLUDED.manifest_uri,
		    ledger_timestamp = EXCLUDED.ledger_timestamp,
		    updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query,
		entry.ContentHash, entry.Creator, entry.ManifestURI, entry.Timestamp); err != nil {
		return fmt.Errorf("upsert content record: %w", err)
	}
	return nil
}

// FindByHash returns the stored record for hash, or models.ErrNotFound.
func (r *ContentRepository) FindByHash(ctx context.Context, hash string) (*models.ContentEntry, error) {
	query := `
		SELECT content_hash, creator, manifest_uri, ledger_timestamp AS timestamp
		FROM content_records
		WHERE content_hash = $1`

	var entry models.ContentEntry
	if err := r.db.GetContext(ctx, &entry, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("find content record: %w", err)
	}
	return &entry, nil
}
