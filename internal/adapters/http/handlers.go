package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mbridger/peakring/internal/core/domain"
	"github.com/mbridger/peakring/internal/core/usecases"
)

// PanoramaHandler serves the full 360-viewpoint dataset. The artifact is
// compressed once at build time; it is sent as-is with an explicit
// Content-Encoding so no caller ever receives the uncompressed payload.
func PanoramaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		artifact, err := deps.Panorama.Artifact(c.Context())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("panorama build failed", "error", err)
			return errInternal(c, "panorama build failed: "+err.Error())
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		c.Set(fiber.HeaderContentEncoding, "gzip")
		c.Set("Cache-Control", "public, max-age=86400, immutable")
		return c.Send(artifact.Gzip)
	}
}

// ViewpointHandler serves a single viewpoint by its generation angle.
func ViewpointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		angle, err := c.ParamsInt("angle")
		if err != nil {
			return errBadRequest(c, "angle must be an integer")
		}
		if angle < 0 || angle >= domain.RingAngles {
			return errNotFound(c, "angle must be 0-359")
		}

		artifact, err := deps.Panorama.Artifact(c.Context())
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("panorama build failed", "error", err)
			return errInternal(c, "panorama build failed: "+err.Error())
		}

		return c.JSON(artifact.Dataset.Viewpoints[angle])
	}
}

// MetaHandler describes the dataset: generation parameters plus the current
// cache state, so clients can poll while the first build is pending.
func MetaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		meta := fiber.Map{
			"peak":        domain.Peak,
			"distance_km": domain.RingDistanceKm,
			"half_fov":    domain.HalfFOVDegrees,
			"viewpoints":  domain.RingAngles,
			"state":       deps.Panorama.State(),
		}

		// BuiltAt only exists once a build has completed; peek without
		// triggering one.
		if deps.Panorama.State() == usecases.StateReady {
			if artifact, err := deps.Panorama.Artifact(c.Context()); err == nil {
				meta["built_at"] = artifact.BuiltAt
			}
		}

		c.Set("Cache-Control", "public, max-age=10")
		return c.JSON(meta)
	}
}
