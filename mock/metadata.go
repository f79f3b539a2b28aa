package mock

import (
	"context"

	"github.com/dukerupert/imgbed"
)

// Compile-time interface check
var _ imgbed.MetadataService = (*MetadataService)(nil)

// MetadataService is a mock implementation of imgbed.MetadataService.
type MetadataService struct {
	RecordMetadataFn func(ctx context.Context, rec *imgbed.MetadataRecord) error
	FindMetadataFn   func(ctx context.Context, ref imgbed.Reference) (*imgbed.MetadataRecord, error)
}

func (s *MetadataService) RecordMetadata(ctx context.Context, rec *imgbed.MetadataRecord) error {
	if s.RecordMetadataFn != nil {
		return s.RecordMetadataFn(ctx, rec)
	}
	return nil
}

func (s *MetadataService) FindMetadata(ctx context.Context, ref imgbed.Reference) (*imgbed.MetadataRecord, error) {
	if s.FindMetadataFn != nil {
		return s.FindMetadataFn(ctx, ref)
	}
	return nil, imgbed.NotFound("Metadata not found")
}
