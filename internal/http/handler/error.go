package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"siteimage/internal/http/middleware"
	"siteimage/internal/imagehost"
	"siteimage/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "BAD_REQUEST", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps an image host error kind to a status code. Client-side kinds
// keep their message; everything else is logged and answered generically.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "ID_REQUIRED", err.Error())
	case errors.Is(err, imagehost.ErrBadRequest):
		return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, imagehost.ErrPreconditionFailed):
		return writeError(c, fiber.StatusPreconditionFailed, "PRECONDITION_FAILED", err.Error())
	case errors.Is(err, imagehost.ErrNotDecodable):
		return writeError(c, fiber.StatusUnprocessableEntity, "NOT_DECODABLE", "file is not a supported image")
	}

	logger := slog.Default().With("component", "http", "request_id", requestIDFromCtx(c))
	if errors.Is(err, imagehost.ErrRemoteService) {
		logger.Error("remote service failure", "event", "remote_error", "path", c.Path(), "error", err.Error())
		return writeError(c, fiber.StatusBadGateway, "REMOTE_SERVICE_ERROR", "image service unavailable")
	}
	logger.Error("request failed", "event", "internal_error", "path", c.Path(), "error", err.Error())
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
