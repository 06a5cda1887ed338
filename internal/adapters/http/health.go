package http

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mbridger/peakring/internal/core/usecases"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler checks that the elevation grid is reachable and reports the
// dataset cache state. The dataset builds lazily, so "empty" is still ready;
// only a missing grid makes the instance unable to serve.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := make(map[string]string)
		allOK := true

		state := deps.Panorama.State()
		checks["dataset"] = state

		if _, err := os.Stat(deps.GridPath); err != nil {
			checks["elevation_grid"] = "error: " + err.Error()
			// A retained dataset outlives its source file.
			if state != usecases.StateReady {
				allOK = false
			}
		} else {
			checks["elevation_grid"] = "ok"
		}

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
