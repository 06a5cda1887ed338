package ports

import (
	"context"

	"github.com/mbridger/peakring/internal/core/domain"
)

// ElevationSource answers horizon queries against loaded terrain data. The
// direction bounds are inclusive integer compass degrees in [0, 359] and
// startDir must not exceed endDir; windows that wrap through 0°/360° are the
// caller's problem and are issued as two queries. Implementations must be
// safe for concurrent use once loaded.
type ElevationSource interface {
	HorizonQuery(ctx context.Context, lat, lon float64, startDir, endDir int) ([]domain.RawHorizonSample, error)
}

// ElevationLoader opens terrain data from a path. Loading is slow (disk I/O
// plus grid decode) and fallible; it is invoked at most once per successful
// build by the panorama cache.
type ElevationLoader func(ctx context.Context, path string) (ElevationSource, error)
