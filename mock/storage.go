package mock

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dukerupert/imgbed"
)

// Compile-time interface check
var _ imgbed.BlobStore = (*BlobStore)(nil)

// BlobStore is a mock implementation of imgbed.BlobStore.
type BlobStore struct {
	StoreFn   func(ctx context.Context, file *imgbed.UploadFile) (string, error)
	ResolveFn func(ctx context.Context, ref imgbed.Reference) (string, error)
	OpenFn    func(ctx context.Context, location string) (*imgbed.Blob, error)
	NameFn    func() string
}

func (s *BlobStore) Store(ctx context.Context, file *imgbed.UploadFile) (string, error) {
	if s.StoreFn != nil {
		return s.StoreFn(ctx, file)
	}
	return "mock-handle", nil
}

func (s *BlobStore) Resolve(ctx context.Context, ref imgbed.Reference) (string, error) {
	if s.ResolveFn != nil {
		return s.ResolveFn(ctx, ref)
	}
	return "https://mock-storage.example.com/" + ref.Handle(), nil
}

func (s *BlobStore) Open(ctx context.Context, location string) (*imgbed.Blob, error) {
	if s.OpenFn != nil {
		return s.OpenFn(ctx, location)
	}
	return NewBlob(http.StatusOK, "mock file"), nil
}

func (s *BlobStore) Name() string {
	if s.NameFn != nil {
		return s.NameFn()
	}
	return "mock"
}

// NewBlob returns a Blob streaming body with a known length.
func NewBlob(status int, body string) *imgbed.Blob {
	return &imgbed.Blob{
		StatusCode:    status,
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(strings.NewReader(body)),
	}
}
