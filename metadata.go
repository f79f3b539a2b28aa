package imgbed

import (
	"context"
	"time"
)

// MetadataRecord is descriptive information about an upload, keyed by its
// reference. It is informational only: retrieval never reads it.
type MetadataRecord struct {
	Reference   Reference `json:"reference"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ContentType string    `json:"fileType"`
	UploadedAt  time.Time `json:"timeStamp"`
}

// MetadataService persists upload metadata.
type MetadataService interface {
	// RecordMetadata stores a record. Records are written once.
	RecordMetadata(ctx context.Context, rec *MetadataRecord) error

	// FindMetadata retrieves the record for a reference.
	// Returns ENOTFOUND if no record exists.
	FindMetadata(ctx context.Context, ref Reference) (*MetadataRecord, error)
}

// MetadataConfig holds configuration for the metadata side-store.
type MetadataConfig struct {
	// Provider is "none", "memory", "postgres" or "s3".
	Provider string

	// S3 metadata configuration
	S3Bucket string
	S3Region string
	S3Prefix string
}
