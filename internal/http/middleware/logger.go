package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"notary/internal/logging"
)

// LoggerWithWriter logs each HTTP request as one JSON line to w.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return RequestLogger(logging.NewWithWriter(w, loc).Component("http"))
}

// RequestLogger logs each HTTP request through l.
// Fields: request_id (set by RequestID), method, path, status and latency in ms.
func RequestLogger(l *logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := c.Response().StatusCode()
		if err != nil {
			// The global error handler has not written the response yet.
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		entry := map[string]any{
			"msg":        "http_request",
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		}
		if status >= fiber.StatusInternalServerError {
			entry["level"] = "error"
		}
		l.Log(entry)

		return err
	}
}
