// Package memory provides in-process implementations of domain service
// interfaces. Data does not survive a restart.
package memory

import (
	"context"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/patrickmn/go-cache"
)

// Compile-time check that MetadataService implements imgbed.MetadataService.
var _ imgbed.MetadataService = (*MetadataService)(nil)

// MetadataService keeps upload metadata in memory. Records never expire.
type MetadataService struct {
	cache *cache.Cache
}

// NewMetadataService creates an empty in-memory metadata store.
func NewMetadataService() *MetadataService {
	return &MetadataService{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// RecordMetadata stores a copy of rec. The first record for a reference
// wins; later writes are ignored.
func (s *MetadataService) RecordMetadata(ctx context.Context, rec *imgbed.MetadataRecord) error {
	if rec == nil || rec.Reference == "" {
		return imgbed.Invalid("Reference is required")
	}
	stored := *rec
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = time.Now().UTC()
	}
	// Add fails when the key exists, which is exactly write-once.
	_ = s.cache.Add(string(rec.Reference), &stored, cache.NoExpiration)
	return nil
}

// FindMetadata returns a copy of the record for ref.
func (s *MetadataService) FindMetadata(ctx context.Context, ref imgbed.Reference) (*imgbed.MetadataRecord, error) {
	v, ok := s.cache.Get(string(ref))
	if !ok {
		return nil, imgbed.NotFound("Metadata not found")
	}
	rec := *v.(*imgbed.MetadataRecord)
	return &rec, nil
}

// Count returns the number of stored records.
func (s *MetadataService) Count() int {
	return s.cache.ItemCount()
}
