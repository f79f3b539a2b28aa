package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/jackc/pgx/v5"
)

// Compile-time check that MetadataService implements imgbed.MetadataService.
var _ imgbed.MetadataService = (*MetadataService)(nil)

// MetadataService implements imgbed.MetadataService using PostgreSQL.
type MetadataService struct {
	db *DB
}

const insertMetadata = `
INSERT INTO file_metadata (reference, file_name, file_size, content_type, uploaded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (reference) DO NOTHING`

const selectMetadata = `
SELECT reference, file_name, file_size, content_type, uploaded_at
FROM file_metadata
WHERE reference = $1`

func (s *MetadataService) RecordMetadata(ctx context.Context, rec *imgbed.MetadataRecord) error {
	if rec == nil || rec.Reference == "" {
		return imgbed.Invalid("Reference is required")
	}

	uploadedAt := rec.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err := s.db.pool.Exec(ctx, insertMetadata,
		string(rec.Reference),
		rec.FileName,
		rec.FileSize,
		rec.ContentType,
		uploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return imgbed.Internal("Failed to record metadata", err)
	}

	return nil
}

func (s *MetadataService) FindMetadata(ctx context.Context, ref imgbed.Reference) (*imgbed.MetadataRecord, error) {
	var (
		rec       imgbed.MetadataRecord
		reference string
	)
	err := s.db.pool.QueryRow(ctx, selectMetadata, string(ref)).Scan(
		&reference,
		&rec.FileName,
		&rec.FileSize,
		&rec.ContentType,
		&rec.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, imgbed.NotFound("Metadata not found")
		}
		return nil, imgbed.Internal("Failed to fetch metadata", err)
	}

	rec.Reference = imgbed.Reference(reference)
	rec.UploadedAt = rec.UploadedAt.UTC()
	return &rec, nil
}
