package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
)

// withTimeout creates a context with a timeout for handler operations.
func withTimeout(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), timeout)
}

// bind binds path, query and body parameters to a struct and validates it.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return imgbed.Invalid("Invalid request")
	}
	if err := c.Validate(v); err != nil {
		return err
	}
	return nil
}

// requireBlobStore returns the configured blob store, or the missing
// credentials error when none is configured.
func (s *Server) requireBlobStore() (imgbed.BlobStore, error) {
	if s.blobStore == nil {
		return nil, imgbed.ErrMissingToken
	}
	return s.blobStore, nil
}

// log returns the request-scoped logger.
func (s *Server) log(c echo.Context) *slog.Logger {
	return s.getRequestLogger(c)
}

// Health handlers
func (s *Server) handleHealthCheck(c echo.Context) error {
	return RespondOK(c, StatusResponse{Status: "ok"})
}

func (s *Server) handleLivenessCheck(c echo.Context) error {
	return RespondOK(c, StatusResponse{Status: "alive"})
}

func (s *Server) handleReadinessCheck(c echo.Context) error {
	if s.blobStore == nil {
		return Respond(c, http.StatusServiceUnavailable, StatusResponse{
			Status: "not ready",
			Error:  imgbed.ErrorMessage(imgbed.ErrMissingToken),
		})
	}

	if s.readyCheck != nil {
		ctx, cancel := withTimeout(c, 2*time.Second)
		defer cancel()
		if err := s.readyCheck(ctx); err != nil {
			s.log(c).Warn("readiness check failed", slog.String("error", err.Error()))
			return Respond(c, http.StatusServiceUnavailable, StatusResponse{Status: "not ready"})
		}
	}

	return RespondOK(c, StatusResponse{Status: "ready"})
}
