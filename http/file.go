package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
)

// fileRoute serves stored files by reference.
const fileRoute = "/file/:reference"

// cacheControl marks file responses immutable for a year.
const cacheControl = "public, max-age=31536000"

func (s *Server) handleFile(c echo.Context) error {
	store, err := s.requireBlobStore()
	if err != nil {
		return err
	}

	ref := referenceParam(c)
	ctx := c.Request().Context()

	// Locations expire upstream, so every request resolves afresh.
	location, err := store.Resolve(ctx, ref)
	if err != nil {
		return err
	}

	blob, err := store.Open(ctx, location)
	if err != nil {
		return err
	}
	defer blob.Close()

	header := c.Response().Header()
	for key, values := range fileHeaders(ref, blob.ContentLength) {
		header[key] = values
	}
	c.Response().WriteHeader(blob.StatusCode)

	if c.Request().Method == http.MethodHead {
		return nil
	}

	if _, err := io.Copy(c.Response(), blob.Body); err != nil {
		// Headers are sent; the client sees a truncated body.
		s.log(c).Warn("file stream interrupted",
			slog.String("reference", string(ref)),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// referenceParam returns the unescaped reference path parameter.
func referenceParam(c echo.Context) imgbed.Reference {
	raw := c.Param("reference")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return imgbed.Reference(raw)
}

// fileHeaders returns the response headers for a file. They depend only on
// the reference and the upstream-reported length; upstream headers are
// never forwarded. A negative length is omitted.
func fileHeaders(ref imgbed.Reference, contentLength int64) http.Header {
	handle, ext := imgbed.DecodeReference(ref)
	if ext == "" {
		ext = imgbed.DefaultExtension
	}

	h := make(http.Header)
	h.Set(echo.HeaderContentType, imgbed.ContentTypeForExtension(ext))
	h.Set("Cache-Control", cacheControl)
	h.Set(echo.HeaderContentDisposition, `inline; filename="`+quoteEscaper.Replace(handle+"."+ext)+`"`)
	if contentLength >= 0 {
		h.Set(echo.HeaderContentLength, strconv.FormatInt(contentLength, 10))
	}
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	return h
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
