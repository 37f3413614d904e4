package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"notary/internal/http/middleware"
	"notary/internal/service"
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
// - code: machine-readable short error code (e.g., "INVALID_INPUT", "PAYMENT_REUSED", "INTERNAL_ERROR")
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

// writeServiceError maps a notary service error onto the error envelope.
// Caller mistakes carry their message; upstream failures only name the failed step class.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "IN_PROGRESS", "notarization already in progress, retry shortly")
	case errors.Is(err, service.ErrPaymentReused):
		return writeError(c, fiber.StatusConflict, "PAYMENT_REUSED", "payment transaction already used")
	case errors.Is(err, service.ErrPaymentInvalid):
		return writeError(c, fiber.StatusPaymentRequired, "PAYMENT_INVALID", "payment transaction invalid or not found")
	case errors.Is(err, service.ErrInsufficientOperatorFunds):
		return writeError(c, fiber.StatusServiceUnavailable, "OPERATOR_FUNDS_LOW", "operator balance too low, try later")
	case errors.Is(err, service.ErrServiceTimeout):
		return writeError(c, fiber.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "upstream service timed out")
	case errors.Is(err, service.ErrServiceError):
		return writeError(c, fiber.StatusBadGateway, "UPSTREAM_ERROR", "upstream service failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
