// Package telegram implements imgbed.BlobStore on top of the Telegram Bot
// API: files are sent to a chat and fetched back through getFile.
package telegram

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
	"strings"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/dukerupert/imgbed/internal/metrics"
	"github.com/dukerupert/imgbed/internal/upstream"
)

// Compile-time interface check
var _ imgbed.BlobStore = (*Client)(nil)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// method is a Bot API send call and the form field carrying the file.
type method struct {
	name  string
	field string
}

// methods maps each media kind to the Bot API call that stores it.
var methods = map[imgbed.MediaKind]method{
	imgbed.MediaPhoto:    {name: "sendPhoto", field: "photo"},
	imgbed.MediaVideo:    {name: "sendVideo", field: "video"},
	imgbed.MediaAudio:    {name: "sendAudio", field: "audio"},
	imgbed.MediaDocument: {name: "sendDocument", field: "document"},
}

// Config holds Telegram storage configuration.
type Config struct {
	Token  string
	ChatID string
	APIURL string

	// PreserveImages sends images as documents so Telegram keeps the
	// original bytes instead of recompressing them.
	PreserveImages bool

	// Timeout bounds send and getFile calls. Downloads are not bounded.
	Timeout time.Duration
}

// Client stores files in a Telegram chat.
type Client struct {
	token          string
	chatID         string
	apiURL         string
	preserveImages bool

	api      upstream.Doer
	download upstream.Doer

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Telegram client. Returns an ECONFIG error when the
// token or chat ID is missing.
func NewClient(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.Token == "" {
		return nil, imgbed.ErrMissingToken
	}
	if cfg.ChatID == "" {
		return nil, imgbed.Errorf(imgbed.ECONFIG, "Missing chat ID")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	return &Client{
		token:          cfg.Token,
		chatID:         cfg.ChatID,
		apiURL:         strings.TrimRight(cfg.APIURL, "/"),
		preserveImages: cfg.PreserveImages,
		api:            &http.Client{Timeout: cfg.Timeout},
		download:       &http.Client{},
		logger:         logger,
		metrics:        m,
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string {
	return "telegram"
}

// methodFor returns the send call for an upload.
func (c *Client) methodFor(kind imgbed.MediaKind) (imgbed.MediaKind, method) {
	if c.preserveImages && kind == imgbed.MediaPhoto {
		kind = imgbed.MediaDocument
	}
	m, ok := methods[kind]
	if !ok {
		kind = imgbed.MediaDocument
		m = methods[kind]
	}
	return kind, m
}

// Store sends the file to the configured chat and returns its file_id.
func (c *Client) Store(ctx context.Context, file *imgbed.UploadFile) (handle string, err error) {
	kind, m := c.methodFor(file.Kind())

	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(c.Name(), m.name, time.Since(start), err)
	}()

	body, contentType := c.multipartBody(m.field, file)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(m.name), body)
	if err != nil {
		body.Close()
		return "", imgbed.Internal("Failed to build upload request", upstream.Redact(err))
	}
	req.Header.Set("Content-Type", contentType)

	var resp apiResponse[Message]
	if err := c.do(req, &resp); err != nil {
		return "", err
	}

	if !resp.OK {
		c.logger.Warn("telegram rejected upload",
			slog.String("method", m.name),
			slog.Int("error_code", resp.ErrorCode),
			slog.String("description", resp.Description),
		)
		return "", imgbed.Upstream(describe(resp.Description, resp.ErrorCode))
	}

	handle = resp.Result.FileID(kind)
	if handle == "" {
		return "", imgbed.Internal("Failed to get file ID from storage provider response",
			fmt.Errorf("%s result for message %d holds no file", m.name, resp.Result.MessageID))
	}

	c.logger.Debug("telegram stored file",
		slog.String("method", m.name),
		slog.Int64("message_id", resp.Result.MessageID),
	)

	return handle, nil
}

// Resolve asks getFile for the current download path of a file_id.
func (c *Client) Resolve(ctx context.Context, ref imgbed.Reference) (location string, err error) {
	handle := ref.Handle()
	if handle == "" {
		return "", imgbed.NotFound("File not found")
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(c.Name(), "getFile", time.Since(start), err)
	}()

	u := c.methodURL("getFile") + "?file_id=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", imgbed.Internal("Failed to build resolve request", upstream.Redact(err))
	}

	var resp apiResponse[File]
	if err := c.do(req, &resp); err != nil {
		return "", err
	}

	if !resp.OK {
		switch resp.ErrorCode {
		case 0, http.StatusBadRequest, http.StatusNotFound:
			return "", imgbed.NotFound("File not found")
		default:
			return "", imgbed.Internal("Failed to resolve file",
				fmt.Errorf("getFile: %s", describe(resp.Description, resp.ErrorCode)))
		}
	}
	if resp.Result.FilePath == "" {
		return "", imgbed.NotFound("File not found")
	}

	return c.apiURL + "/file/bot" + c.token + "/" + resp.Result.FilePath, nil
}

// Open streams a resolved file.
func (c *Client) Open(ctx context.Context, location string) (blob *imgbed.Blob, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordUpstreamCall(c.Name(), "download", time.Since(start), err)
	}()
	return upstream.Get(ctx, c.download, location)
}

func (c *Client) methodURL(name string) string {
	return c.apiURL + "/bot" + c.token + "/" + name
}

// do sends a Bot API request and decodes the envelope. Telegram answers
// failures with a JSON envelope and a non-2xx status, so the status code
// is not checked here.
func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.api.Do(req)
	if err != nil {
		return imgbed.Internal("Failed to reach storage provider", upstream.Redact(err))
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return imgbed.Internal("Invalid response from storage provider",
			fmt.Errorf("decoding %d response: %w", resp.StatusCode, err))
	}
	return nil
}

// multipartBody streams the upload form without buffering the payload.
func (c *Client) multipartBody(field string, file *imgbed.UploadFile) (*io.PipeReader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeForm(mw, c.chatID, field, file)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, chatID, field string, file *imgbed.UploadFile) error {
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		field, escapeQuotes(file.Filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file.Body)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func describe(description string, code int) string {
	if description != "" {
		return description
	}
	return fmt.Sprintf("Telegram API error %d", code)
}
