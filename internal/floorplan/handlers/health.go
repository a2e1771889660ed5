package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Health Check Handlers
// ============================================================

func LivenessProbe(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// ReadinessProbe reports ready while check passes.
func ReadinessProbe(check func(context.Context) error) fiber.Handler {
	return func(c fiber.Ctx) error {
		if check != nil {
			if err := check(c.Context()); err != nil {
				return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	}
}
