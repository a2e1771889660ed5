package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesAccessLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(Logger(logger))
	app.Get("/ok", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c fiber.Ctx) error { return fiber.NewError(fiber.StatusBadGateway, "upstream") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, buf.String(), `"component":"http"`)
	assert.Contains(t, buf.String(), "200 - ")
	assert.Contains(t, buf.String(), "GET /ok")

	buf.Reset()
	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, buf.String(), "502 - ")
	assert.Contains(t, buf.String(), "GET /boom")
}

func TestSlogWriterSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	w := slogWriter{slog.New(slog.NewTextHandler(&buf, nil))}

	n, err := w.Write([]byte("first\nsecond\n"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, 2, strings.Count(buf.String(), "level=INFO"))
	assert.Contains(t, buf.String(), "msg=second")
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS([]string{"http://shop.example"}))
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://shop.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "http://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
