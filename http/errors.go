package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/imgbed"
	"github.com/labstack/echo/v4"
)

// errorStatusCode maps domain error codes to HTTP status codes.
func errorStatusCode(code string) int {
	switch code {
	case imgbed.ENOTFOUND:
		return http.StatusNotFound
	case imgbed.EINVALID:
		return http.StatusBadRequest
	case imgbed.ERATELIMIT:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// statusErrorCode maps a status produced by echo itself (unknown route,
// wrong method, oversized body) to a domain error code.
func statusErrorCode(status int) string {
	switch {
	case status == http.StatusNotFound:
		return imgbed.ENOTFOUND
	case status == http.StatusTooManyRequests:
		return imgbed.ERATELIMIT
	case status >= 400 && status < 500:
		return imgbed.EINVALID
	default:
		return imgbed.EINTERNAL
	}
}

// ErrorResponse represents the JSON error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	internalErrorMessage = "An internal error occurred."
	fileErrorMessage     = "Error fetching file"
)

// HandleError converts errors to HTTP responses. Internal errors are
// logged with their cause and answered with a generic message. Errors on
// the file route are plain text; all others are JSON.
func HandleError(c echo.Context, logger *slog.Logger, err error) error {
	status, code, message := describeError(err)
	fileRequest := c.Path() == fileRoute

	// Log internal errors with full details
	if code == imgbed.EINTERNAL {
		logger.Error("internal error",
			slog.String("error", err.Error()),
			slog.String("path", c.Path()),
			slog.String("method", c.Request().Method),
		)
		// Don't expose internal error details to clients
		message = internalErrorMessage
		if fileRequest {
			message = fileErrorMessage
		}
	}

	if fileRequest {
		if c.Request().Method == http.MethodHead {
			return c.NoContent(status)
		}
		return c.String(status, message)
	}

	return c.JSON(status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// describeError returns the status, code and client message for err.
func describeError(err error) (status int, code, message string) {
	var he *echo.HTTPError
	if errors.As(err, &he) && !isDomainError(err) {
		message = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		} else if he.Message != nil {
			message = fmt.Sprint(he.Message)
		}
		return he.Code, statusErrorCode(he.Code), message
	}

	code = imgbed.ErrorCode(err)
	return errorStatusCode(code), code, imgbed.ErrorMessage(err)
}

// isDomainError checks if the error is an imgbed.Error.
func isDomainError(err error) bool {
	var e *imgbed.Error
	return errors.As(err, &e)
}
