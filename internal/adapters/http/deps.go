package http

import (
	"github.com/mbridger/peakring/internal/core/usecases"
)

// Dependencies holds everything the HTTP handlers need.
type Dependencies struct {
	Panorama *usecases.PanoramaCache

	// GridPath is the elevation grid location, checked by the readiness
	// probe before the first build has run.
	GridPath string
}
