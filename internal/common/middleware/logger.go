package middleware

import (
	"bytes"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

// AccessLogFormat is the request line written per request.
const AccessLogFormat = "[${time}] ${status} - ${latency} ${method} ${path} | Content-Type: ${reqHeader:Content-Type}\n"

// Logger returns the access log middleware. Lines go to the structured
// logger so they share its output and level.
func Logger(l *slog.Logger) fiber.Handler {
	return logger.New(logger.Config{
		Format:        AccessLogFormat,
		TimeFormat:    "15:04:05",
		TimeZone:      "Local",
		Stream:        slogWriter{l.With("component", "http")},
		DisableColors: true,
	})
}

// slogWriter turns each written access line into one Info entry.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) > 0 {
			w.logger.Info(string(line))
		}
	}
	return len(p), nil
}
