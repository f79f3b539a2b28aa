// Package paste implements imgbed.BlobStore on top of a telegra.ph style
// image host: files are posted to <base>/upload and served from
// <base>/file/<name>.
package paste

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/dukerupert/imgbed/internal/metrics"
	"github.com/dukerupert/imgbed/internal/upstream"
)

// Compile-time interface check
var _ imgbed.BlobStore = (*Client)(nil)

// DefaultBaseURL is the public paste host.
const DefaultBaseURL = "https://telegra.ph"

// Config holds paste host configuration.
type Config struct {
	BaseURL string

	// Timeout bounds upload calls. Downloads are not bounded.
	Timeout time.Duration
}

// Client stores files on a paste host.
type Client struct {
	baseURL  string
	api      upstream.Doer
	download upstream.Doer

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// uploadResult is one entry of a successful upload reply.
type uploadResult struct {
	Src string `json:"src"`
}

// uploadError is the reply to a rejected upload.
type uploadError struct {
	Error string `json:"error"`
}

// NewClient creates a paste host client.
func NewClient(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, imgbed.Errorf(imgbed.ECONFIG, "Invalid paste base URL")
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		api:      &http.Client{Timeout: cfg.Timeout},
		download: &http.Client{},
		logger:   logger,
		metrics:  m,
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string {
	return "paste"
}

// Store uploads the file and returns the stored file name as the handle.
func (c *Client) Store(ctx context.Context, file *imgbed.UploadFile) (handle string, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(c.Name(), "upload", time.Since(start), err)
	}()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, file)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return "", imgbed.Internal("Failed to build upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.api.Do(req)
	if err != nil {
		return "", imgbed.Internal("Failed to reach storage provider", upstream.Redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", imgbed.Internal("Failed to read storage provider response", err)
	}

	var results []uploadResult
	if err := json.Unmarshal(body, &results); err != nil {
		var rejected uploadError
		if json.Unmarshal(body, &rejected) == nil && rejected.Error != "" {
			c.logger.Warn("paste host rejected upload",
				slog.Int("status", resp.StatusCode),
				slog.String("error", rejected.Error),
			)
			return "", imgbed.Upstream(rejected.Error)
		}
		return "", imgbed.Internal("Invalid response from storage provider",
			fmt.Errorf("decoding %d response: %w", resp.StatusCode, err))
	}

	if len(results) == 0 || results[0].Src == "" {
		return "", imgbed.Internal("Failed to get file ID from storage provider response",
			fmt.Errorf("upload reply holds no src"))
	}

	return path.Base(results[0].Src), nil
}

// Resolve builds the public location of a stored file. The host offers no
// lookup, so unknown handles surface when the file is opened.
func (c *Client) Resolve(ctx context.Context, ref imgbed.Reference) (string, error) {
	handle := ref.Handle()
	if handle == "" {
		return "", imgbed.NotFound("File not found")
	}
	return c.baseURL + "/file/" + url.PathEscape(handle), nil
}

// Open streams a stored file. A 404 from the host is reported as ENOTFOUND.
func (c *Client) Open(ctx context.Context, location string) (blob *imgbed.Blob, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(c.Name(), "download", time.Since(start), err)
	}()

	blob, err = upstream.Get(ctx, c.download, location)
	if err != nil {
		return nil, err
	}
	if blob.StatusCode == http.StatusNotFound {
		blob.Close()
		return nil, imgbed.NotFound("File not found")
	}
	return blob, nil
}

func writeForm(mw *multipart.Writer, file *imgbed.UploadFile) error {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`,
		strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(file.Filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file.Body)
	return err
}
