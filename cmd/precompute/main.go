package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/mbridger/peakring/internal/adapters/dem"
	"github.com/mbridger/peakring/internal/core/usecases"
	"github.com/mbridger/peakring/internal/pkg/config"
	"github.com/mbridger/peakring/internal/pkg/logging"
)

// precompute runs the panorama pipeline once, eagerly, and writes the
// uncompressed JSON artifact to a static file. Same pipeline the API serves;
// no cache involved since the process builds once and exits.
func main() {
	output := "panorama.json"
	if len(os.Args) > 1 {
		output = os.Args[1]
	}

	cfg, err := config.Load("peakring-precompute")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	start := time.Now()

	src, err := dem.Load(ctx, cfg.Elevation.GridPath)
	if err != nil {
		log.Fatalf("elevation data: %v", err)
	}

	svc := usecases.NewPanoramaService(cfg.Build.Parallelism)
	dataset, err := svc.BuildDataset(ctx, src)
	if err != nil {
		log.Fatalf("build dataset: %v", err)
	}

	data, err := json.Marshal(dataset)
	if err != nil {
		log.Fatalf("encode dataset: %v", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", output, err)
	}

	slog.Info("panorama precomputed",
		"output", output,
		"viewpoints", len(dataset.Viewpoints),
		"bytes", len(data),
		"elapsed", time.Since(start).String(),
	)
}
