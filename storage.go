package imgbed

import (
	"context"
	"io"
)

// BlobStore is an upstream storage provider holding the actual file bytes.
type BlobStore interface {
	// Store sends a file to the provider and returns the handle it issued.
	// Returns EUPSTREAM when the provider rejects the file, and EINTERNAL
	// when the provider reports success but no handle can be found.
	Store(ctx context.Context, file *UploadFile) (handle string, err error)

	// Resolve returns the current download location for a reference.
	// Locations are short-lived and must not be cached.
	// Returns ENOTFOUND if the provider does not know the handle.
	Resolve(ctx context.Context, ref Reference) (location string, err error)

	// Open starts downloading a resolved location. The caller must close
	// the returned Blob.
	Open(ctx context.Context, location string) (*Blob, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// UploadFile describes a single file received from a client.
type UploadFile struct {
	// Filename is the client-supplied name, "file" when absent.
	Filename string

	// ContentType is the declared MIME type, possibly empty.
	ContentType string

	// Size is the payload length in bytes.
	Size int64

	// Extension is derived from Filename, lower-cased, without the dot.
	Extension string

	// Body is the payload.
	Body io.Reader
}

// Kind returns the media classification of the declared content type.
func (f *UploadFile) Kind() MediaKind {
	return ClassifyContentType(f.ContentType)
}

// Blob is a streamed upstream download.
type Blob struct {
	// StatusCode is the status the provider answered the download with.
	StatusCode int

	// ContentLength is the provider-reported length, or -1 when unknown.
	ContentLength int64

	// Body streams the payload.
	Body io.ReadCloser
}

// Close releases the download.
func (b *Blob) Close() error {
	if b == nil || b.Body == nil {
		return nil
	}
	return b.Body.Close()
}
