package dem

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/mbridger/peakring/internal/core/domain"
	"github.com/mbridger/peakring/internal/core/ports"
	"github.com/mbridger/peakring/internal/pkg/geodesy"
)

// Ray-marching parameters. The step is roughly one 3-arcsecond cell; the max
// range comfortably covers every ridge visible from the Wasatch ring.
const (
	observerHeightM = 2.0
	rayStepKm       = 0.09
	maxRangeKm      = 60.0
	earthRadiusKm   = 6371.0
)

// Grid is a preprocessed elevation raster: a regular lat/lon grid of
// elevations in metres, row-major with row 0 at MinLat. It is produced
// offline; this package only reads it.
type Grid struct {
	MinLat      float64
	MinLon      float64
	CellDegrees float64
	Rows        int
	Cols        int
	Elevations  []int16
}

func (g *Grid) validate() error {
	if g.Rows < 2 || g.Cols < 2 {
		return fmt.Errorf("grid too small: %dx%d", g.Rows, g.Cols)
	}
	if g.CellDegrees <= 0 {
		return fmt.Errorf("non-positive cell size %f", g.CellDegrees)
	}
	if len(g.Elevations) != g.Rows*g.Cols {
		return fmt.Errorf("elevation count %d does not match %dx%d grid",
			len(g.Elevations), g.Rows, g.Cols)
	}
	return nil
}

// Model answers horizon queries against a loaded grid. Read-only after Load,
// safe for concurrent use.
type Model struct {
	grid Grid
}

// Load reads a gob-encoded elevation grid from disk. This is the slow,
// fallible step the panorama cache serializes behind its single-flight gate.
func Load(ctx context.Context, path string) (ports.ElevationSource, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elevation grid: %w", err)
	}
	defer f.Close()

	var grid Grid
	if err := gob.NewDecoder(f).Decode(&grid); err != nil {
		return nil, fmt.Errorf("decode elevation grid %s: %w", path, err)
	}
	if err := grid.validate(); err != nil {
		return nil, fmt.Errorf("corrupt elevation grid %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("elevation grid loaded",
		"path", path,
		"rows", grid.Rows,
		"cols", grid.Cols,
		"elapsed", time.Since(start).String(),
	)
	return &Model{grid: grid}, nil
}

var _ ports.ElevationLoader = Load

// ElevationAt returns the bilinearly interpolated terrain elevation in metres
// at a coordinate, or false if the point lies outside grid coverage.
func (m *Model) ElevationAt(lat, lon float64) (float64, bool) {
	g := &m.grid

	row := (lat - g.MinLat) / g.CellDegrees
	col := (lon - g.MinLon) / g.CellDegrees
	if row < 0 || col < 0 || row > float64(g.Rows-1) || col > float64(g.Cols-1) {
		return 0, false
	}

	r0 := int(row)
	c0 := int(col)
	if r0 >= g.Rows-1 {
		r0 = g.Rows - 2
	}
	if c0 >= g.Cols-1 {
		c0 = g.Cols - 2
	}
	fr := row - float64(r0)
	fc := col - float64(c0)

	at := func(r, c int) float64 { return float64(g.Elevations[r*g.Cols+c]) }

	top := at(r0, c0)*(1-fc) + at(r0, c0+1)*fc
	bottom := at(r0+1, c0)*(1-fc) + at(r0+1, c0+1)*fc
	return top*(1-fr) + bottom*fr, true
}

// HorizonQuery marches a ray outward for each whole compass degree in the
// inclusive [startDir, endDir] window and reports the highest terrain
// elevation angle seen along it, with the distance at which it occurs. The
// window must not wrap; callers split wrapping windows into two queries.
func (m *Model) HorizonQuery(ctx context.Context, lat, lon float64, startDir, endDir int) ([]domain.RawHorizonSample, error) {
	if startDir < 0 || endDir > 359 || startDir > endDir {
		return nil, fmt.Errorf("%w: [%d, %d]", domain.ErrQueryRange, startDir, endDir)
	}

	origin := domain.Coordinate{Lat: lat, Lon: lon}
	ground, ok := m.ElevationAt(lat, lon)
	if !ok {
		return nil, fmt.Errorf("observer (%f, %f) outside grid coverage", lat, lon)
	}
	observer := ground + observerHeightM

	samples := make([]domain.RawHorizonSample, 0, endDir-startDir+1)
	for dir := startDir; dir <= endDir; dir++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		samples = append(samples, m.traceRay(origin, observer, dir))
	}
	return samples, nil
}

// traceRay walks one compass direction, correcting each sighting for Earth
// curvature, and keeps the steepest elevation angle encountered.
func (m *Model) traceRay(origin domain.Coordinate, observerM float64, dir int) domain.RawHorizonSample {
	best := domain.RawHorizonSample{Direction: dir, Elevation: -90}

	for distKm := rayStepKm; distKm <= maxRangeKm; distKm += rayStepKm {
		pt := geodesy.DestinationPoint(origin, distKm, float64(dir))
		terrain, ok := m.ElevationAt(pt.Lat, pt.Lon)
		if !ok {
			break
		}

		// Height lost to curvature over the sight line, in metres.
		dropM := distKm * distKm / (2 * earthRadiusKm) * 1000

		angle := math.Atan2(terrain-observerM-dropM, distKm*1000) * 180 / math.Pi
		if angle > best.Elevation {
			best.Elevation = angle
			best.DistanceKm = distKm
		}
	}
	return best
}
