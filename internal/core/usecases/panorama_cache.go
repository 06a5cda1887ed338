package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/mbridger/peakring/internal/core/domain"
	"github.com/mbridger/peakring/internal/core/ports"
	"github.com/mbridger/peakring/internal/pkg/metrics"
)

// Cache states. The Empty→Pending transition is won by exactly one caller;
// Ready is terminal for the life of the process.
const (
	StateEmpty   = "empty"
	StatePending = "pending"
	StateReady   = "ready"
)

// Artifact is the retained build product: the dataset plus its JSON encoding
// and a gzip copy compressed once at build time, shared read-only by all
// callers.
type Artifact struct {
	Dataset *domain.Dataset
	JSON    []byte
	Gzip    []byte
	BuiltAt time.Time
}

// PanoramaCache guards the expensive dataset build behind a single-flight
// gate: the elevation data is loaded and the ring generated at most once per
// process lifetime, with concurrent callers joining the in-flight build. A
// failed build reverts the cache to empty so a later call can retry; the
// failure itself is never cached.
type PanoramaCache struct {
	loader ports.ElevationLoader
	path   string
	svc    *PanoramaService

	group singleflight.Group

	mu       sync.RWMutex
	state    string
	artifact *Artifact
}

// NewPanoramaCache creates an empty cache around the given elevation loader
// and panorama service.
func NewPanoramaCache(loader ports.ElevationLoader, path string, svc *PanoramaService) *PanoramaCache {
	return &PanoramaCache{
		loader: loader,
		path:   path,
		svc:    svc,
		state:  StateEmpty,
	}
}

// State reports the current cache state (empty, pending, or ready).
func (c *PanoramaCache) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Artifact returns the built dataset artifact, triggering the build on first
// use. Concurrent callers share one build; all of them observe its result or
// its failure. A caller whose context expires gives up waiting without
// aborting the shared build for the others.
func (c *PanoramaCache) Artifact(ctx context.Context) (*Artifact, error) {
	c.mu.RLock()
	a := c.artifact
	c.mu.RUnlock()
	if a != nil {
		return a, nil
	}

	metrics.BuildWaiters.Inc()
	defer metrics.BuildWaiters.Dec()

	ch := c.group.DoChan("dataset", c.build)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Artifact), nil
	}
}

// build runs the load-and-generate pipeline. It deliberately uses a fresh
// context: the build outcome is shared by every waiter, so no single caller's
// cancellation may tear it down.
func (c *PanoramaCache) build() (interface{}, error) {
	// A flight can start in the gap between a caller's fast-path check and
	// DoChan; if the artifact landed in that gap there is nothing to do.
	c.mu.RLock()
	if a := c.artifact; a != nil {
		c.mu.RUnlock()
		return a, nil
	}
	c.mu.RUnlock()

	ctx := context.Background()

	c.setState(StatePending)
	start := time.Now()

	tracer := otel.Tracer("peakring/panorama")
	ctx, span := tracer.Start(ctx, "panorama.build")
	span.SetAttributes(
		attribute.Int("panorama.angles", domain.RingAngles),
		attribute.Float64("panorama.ring_distance_km", domain.RingDistanceKm),
	)
	defer span.End()

	artifact, err := c.buildArtifact(ctx)
	if err != nil {
		span.RecordError(err)
		c.setState(StateEmpty)
		metrics.BuildsTotal.WithLabelValues("failure").Inc()
		slog.Error("panorama build failed", "error", err, "elapsed", time.Since(start).String())
		return nil, err
	}

	c.mu.Lock()
	c.artifact = artifact
	c.state = StateReady
	c.mu.Unlock()
	metrics.DatasetState.Set(2)

	metrics.BuildsTotal.WithLabelValues("success").Inc()
	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	slog.Info("panorama build complete",
		"viewpoints", len(artifact.Dataset.Viewpoints),
		"json_bytes", len(artifact.JSON),
		"gzip_bytes", len(artifact.Gzip),
		"elapsed", time.Since(start).String(),
	)

	return artifact, nil
}

func (c *PanoramaCache) buildArtifact(ctx context.Context) (*Artifact, error) {
	slog.Info("loading elevation data", "path", c.path)
	src, err := c.loader(ctx, c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataLoad, err)
	}

	dataset, err := c.svc.BuildDataset(ctx, src)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(dataset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}

	return &Artifact{
		Dataset: dataset,
		JSON:    data,
		Gzip:    buf.Bytes(),
		BuiltAt: time.Now().UTC(),
	}, nil
}

func (c *PanoramaCache) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	switch state {
	case StateEmpty:
		metrics.DatasetState.Set(0)
	case StatePending:
		metrics.DatasetState.Set(1)
	case StateReady:
		metrics.DatasetState.Set(2)
	}
}
