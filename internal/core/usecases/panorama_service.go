package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/mbridger/peakring/internal/core/domain"
	"github.com/mbridger/peakring/internal/core/ports"
	"github.com/mbridger/peakring/internal/pkg/geodesy"
	"github.com/mbridger/peakring/internal/pkg/metrics"
)

// progressInterval controls how often BuildDataset logs progress.
const progressInterval = 45

// PanoramaService generates the viewpoint ring around the peak. It holds no
// mutable state; every viewpoint is a pure function of its angle given a
// fixed elevation source.
type PanoramaService struct {
	parallelism int
}

// NewPanoramaService creates a PanoramaService. parallelism bounds how many
// viewpoints are generated concurrently; values below 1 mean sequential.
func NewPanoramaService(parallelism int) *PanoramaService {
	if parallelism < 1 {
		parallelism = 1
	}
	return &PanoramaService{parallelism: parallelism}
}

// PlanRange computes the inclusive compass window covering ±HalfFOVDegrees
// around the bearing back to the peak. Start > End flags that the window
// wraps through 0°/360°.
func PlanRange(bearingToPeak float64) domain.DirectionRange {
	return domain.DirectionRange{
		Start: int(math.Floor(geodesy.NormalizeAngle(bearingToPeak - domain.HalfFOVDegrees))),
		End:   int(math.Floor(geodesy.NormalizeAngle(bearingToPeak + domain.HalfFOVDegrees))),
	}
}

// toRelative converts absolute-direction samples into peak-relative ones,
// sorted ascending. The bearing is rounded to the nearest whole degree before
// subtraction so that sub-degree bearings stay aligned to the integer-degree
// sample grid; bearingToPeak itself stays unrounded everywhere else.
func toRelative(raw []domain.RawHorizonSample, bearingToPeak float64) []domain.HorizonSample {
	center := math.Round(bearingToPeak)

	out := make([]domain.HorizonSample, 0, len(raw))
	for _, s := range raw {
		out = append(out, domain.HorizonSample{
			Direction:  int(geodesy.NormalizeRelative(float64(s.Direction) - center)),
			Elevation:  s.Elevation,
			DistanceKm: s.DistanceKm,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Direction < out[j].Direction })
	return out
}

// queryWindow fetches raw samples for a direction window, splitting into two
// collaborator queries when the window wraps through 0°/360°. The
// collaborator requires startDir <= endDir, so a single [start,end] query
// would be wrong under wraparound.
func queryWindow(ctx context.Context, src ports.ElevationSource, loc domain.Coordinate, r domain.DirectionRange) ([]domain.RawHorizonSample, error) {
	if !r.Wraps() {
		metrics.HorizonQueries.Inc()
		return src.HorizonQuery(ctx, loc.Lat, loc.Lon, r.Start, r.End)
	}

	metrics.HorizonQueries.Add(2)
	high, err := src.HorizonQuery(ctx, loc.Lat, loc.Lon, r.Start, 359)
	if err != nil {
		return nil, err
	}
	low, err := src.HorizonQuery(ctx, loc.Lat, loc.Lon, 0, r.End)
	if err != nil {
		return nil, err
	}
	return append(high, low...), nil
}

// GenerateViewpoint produces the viewpoint sitting at the given compass angle
// from the peak: it places the point RingDistanceKm out, looks back at the
// peak, and collects the horizon across the field of view.
func (s *PanoramaService) GenerateViewpoint(ctx context.Context, src ports.ElevationSource, angle int) (domain.Viewpoint, error) {
	location := geodesy.DestinationPoint(domain.Peak, domain.RingDistanceKm, float64(angle))
	bearingToPeak := geodesy.Bearing(location, domain.Peak)

	raw, err := queryWindow(ctx, src, location, PlanRange(bearingToPeak))
	if err != nil {
		return domain.Viewpoint{}, fmt.Errorf("viewpoint %d: %w", angle, err)
	}

	return domain.Viewpoint{
		Angle:         angle,
		Location:      location,
		BearingToPeak: bearingToPeak,
		Horizon:       toRelative(raw, bearingToPeak),
	}, nil
}

// BuildDataset generates all RingAngles viewpoints. Generation is fanned out
// across a bounded worker group; each worker writes its viewpoint by index,
// so the dataset order matches the angle order regardless of scheduling.
func (s *PanoramaService) BuildDataset(ctx context.Context, src ports.ElevationSource) (*domain.Dataset, error) {
	viewpoints := make([]domain.Viewpoint, domain.RingAngles)

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for angle := 0; angle < domain.RingAngles; angle++ {
		angle := angle
		g.Go(func() error {
			vp, err := s.GenerateViewpoint(ctx, src, angle)
			if err != nil {
				return err
			}
			viewpoints[angle] = vp

			if n := done.Add(1); n%progressInterval == 0 {
				slog.Info("panorama build progress", "viewpoints", n, "total", domain.RingAngles)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.Dataset{
		Peak:       domain.Peak,
		DistanceKm: domain.RingDistanceKm,
		Viewpoints: viewpoints,
	}, nil
}
