// Package upstream holds HTTP plumbing shared by the storage providers.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dukerupert/imgbed"
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Get starts a streamed download of location. The body is not read; the
// caller owns it through the returned Blob.
func Get(ctx context.Context, client Doer, location string) (*imgbed.Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, imgbed.Internal("Failed to build download request", Redact(err))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, imgbed.Internal("Failed to download file", Redact(err))
	}

	return &imgbed.Blob{
		StatusCode:    resp.StatusCode,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

// Redact strips request URLs from transport errors. Bot API URLs embed the
// bot token, so *url.Error must never reach logs or clients as-is.
func Redact(err error) error {
	if err == nil {
		return nil
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s request: %w", ue.Op, ue.Err)
	}
	return err
}
