package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/originmark/provenance/internal/models"
)

const defaultListLimit = 50

// VerificationRepository is the append-only verification log. Records are
// audit-trail entries and are never deduplicated or updated.
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Append writes one verification record. Missing id/timestamp are filled in.
func (r *VerificationRepository) Append(ctx context.Context, rec *models.VerificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO verification_records
			(id, content_hash, manifest_uri, recovered_address, creator_onchain, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ContentHash, rec.ManifestURI,
		rec.RecoveredAddress, rec.CreatorOnchain, rec.Status, rec.CreatedAt); err != nil {
		return fmt.Errorf("append verification record: %w", err)
	}
	return nil
}

// ListByHash returns the newest records for hash, bounded by limit.
func (r *VerificationRepository) ListByHash(ctx context.Context, hash string, limit int) ([]models.VerificationRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, content_hash, manifest_uri, recovered_address, creator_onchain, status, created_at
		FROM verification_records
		WHERE content_hash = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var records []models.VerificationRecord
	if err := r.db.SelectContext(ctx, &records, query, hash, limit); err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	return records, nil
}
