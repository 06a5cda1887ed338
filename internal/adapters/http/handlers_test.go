package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/gzip"

	handler "github.com/mbridger/peakring/internal/adapters/http"
	"github.com/mbridger/peakring/internal/core/domain"
	"github.com/mbridger/peakring/internal/core/ports"
	"github.com/mbridger/peakring/internal/core/usecases"
)

// ---- Mock elevation source ----

type fakeSource struct{}

func (fakeSource) HorizonQuery(ctx context.Context, lat, lon float64, startDir, endDir int) ([]domain.RawHorizonSample, error) {
	out := make([]domain.RawHorizonSample, 0, endDir-startDir+1)
	for d := startDir; d <= endDir; d++ {
		out = append(out, domain.RawHorizonSample{
			Direction:  d,
			Elevation:  float64(d%20) / 2,
			DistanceKm: 10,
		})
	}
	return out, nil
}

func fakeLoader(ctx context.Context, path string) (ports.ElevationSource, error) {
	return fakeSource{}, nil
}

func failingLoader(ctx context.Context, path string) (ports.ElevationSource, error) {
	return nil, fmt.Errorf("grid unreadable")
}

// ---- Test helpers ----

func setupApp(t *testing.T, loader ports.ElevationLoader) (*fiber.App, *handler.Dependencies) {
	t.Helper()

	gridPath := filepath.Join(t.TempDir(), "test.grid")
	if err := os.WriteFile(gridPath, []byte("placeholder"), 0o644); err != nil {
		t.Fatal(err)
	}

	deps := &handler.Dependencies{
		Panorama: usecases.NewPanoramaCache(loader, gridPath, usecases.NewPanoramaService(8)),
		GridPath: gridPath,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app, deps
}

// ---- Health & readiness ----

func TestHealth_Returns200(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

func TestReady_GridPresent(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestReady_MissingGrid(t *testing.T) {
	app, deps := setupApp(t, fakeLoader)
	os.Remove(deps.GridPath)

	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503 with missing grid, got %d", resp.StatusCode)
	}
}

// ---- Panorama dataset ----

func TestPanorama_ServesGzipDataset(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("expected Content-Encoding gzip, got %q", enc)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("body is not valid gzip: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}

	var ds domain.Dataset
	if err := json.Unmarshal(plain, &ds); err != nil {
		t.Fatalf("decoded body is not a dataset: %v", err)
	}
	if len(ds.Viewpoints) != domain.RingAngles {
		t.Errorf("expected %d viewpoints, got %d", domain.RingAngles, len(ds.Viewpoints))
	}
}

func TestPanorama_BuildFailureReturns500(t *testing.T) {
	app, _ := setupApp(t, failingLoader)

	req := httptest.NewRequest("GET", "/v1/panorama", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500 on build failure, got %d", resp.StatusCode)
	}

	var apiErr struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&apiErr)
	if apiErr.Code != "internal_error" {
		t.Errorf("expected internal_error, got %q", apiErr.Code)
	}
}

func TestPanorama_HandlerCacheControlSurvivesMiddleware(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The handler marks the artifact immutable; the Cache-Control middleware
	// must not replace that with its generic /v1/ default.
	cc := resp.Header.Get("Cache-Control")
	if cc != "public, max-age=86400, immutable" {
		t.Errorf("handler Cache-Control was overridden, got %q", cc)
	}
}

func TestCacheControl_MiddlewareDefaultsApplyWhenHandlerSetsNone(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama/meta", nil)
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=10" {
		t.Errorf("expected meta Cache-Control max-age=10, got %q", cc)
	}

	req = httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ = app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=10" {
		t.Errorf("expected readiness Cache-Control from middleware, got %q", cc)
	}
}

func TestPanorama_BuildFailureLoggedWithRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logBuf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	app, _ := setupApp(t, failingLoader)

	req := httptest.NewRequest("GET", "/v1/panorama", nil)
	req.Header.Set("X-Request-Id", "req-deadbeef")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	// The handler logs the failure through the request-scoped logger, so the
	// line carries the request ID alongside the error.
	var found bool
	for _, line := range strings.Split(logBuf.String(), "\n") {
		if strings.Contains(line, "panorama build failed") && strings.Contains(line, "req-deadbeef") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected a build-failure log line carrying the request ID, got:\n%s", logBuf.String())
	}
}

// ---- Single viewpoint ----

func TestViewpoint_Success(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama/viewpoints/90", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var vp domain.Viewpoint
	json.NewDecoder(resp.Body).Decode(&vp)
	if vp.Angle != 90 {
		t.Errorf("expected angle 90, got %d", vp.Angle)
	}
	if len(vp.Horizon) == 0 {
		t.Error("expected a non-empty horizon")
	}
}

func TestViewpoint_WaitsOutSlowBuild(t *testing.T) {
	slowLoader := func(ctx context.Context, path string) (ports.ElevationSource, error) {
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return fakeSource{}, nil
	}
	app, _ := setupApp(t, slowLoader)

	// The viewpoint route can be the first to trigger the build, so it waits
	// for the full build like the dataset route instead of timing out.
	req := httptest.NewRequest("GET", "/v1/panorama/viewpoints/45", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 after slow build, got %d", resp.StatusCode)
	}

	var vp domain.Viewpoint
	json.NewDecoder(resp.Body).Decode(&vp)
	if vp.Angle != 45 {
		t.Errorf("expected angle 45, got %d", vp.Angle)
	}
}

func TestViewpoint_NonNumericAngle(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama/viewpoints/north", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestViewpoint_AngleOutOfRange(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama/viewpoints/360", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Meta ----

func TestMeta_ReportsStateWithoutTriggeringBuild(t *testing.T) {
	app, deps := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/panorama/meta", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var meta struct {
		State      string  `json:"state"`
		DistanceKm float64 `json:"distance_km"`
		Viewpoints int     `json:"viewpoints"`
	}
	json.NewDecoder(resp.Body).Decode(&meta)
	if meta.State != usecases.StateEmpty {
		t.Errorf("expected empty state before first dataset request, got %q", meta.State)
	}
	if meta.DistanceKm != domain.RingDistanceKm {
		t.Errorf("expected distance %f, got %f", domain.RingDistanceKm, meta.DistanceKm)
	}
	if meta.Viewpoints != domain.RingAngles {
		t.Errorf("expected %d viewpoints, got %d", domain.RingAngles, meta.Viewpoints)
	}
	if got := deps.Panorama.State(); got != usecases.StateEmpty {
		t.Errorf("meta endpoint must not trigger a build, state is %q", got)
	}
}

// ---- GraphQL ----

func TestGraphQL_Viewpoint(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	body := strings.NewReader(`{"query": "{ viewpoint(angle: 10) { angle bearing_to_peak } }"}`)
	req := httptest.NewRequest("POST", "/graphql", body)
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Viewpoint struct {
				Angle int `json:"angle"`
			} `json:"viewpoint"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	if result.Data.Viewpoint.Angle != 10 {
		t.Errorf("expected angle 10, got %d", result.Data.Viewpoint.Angle)
	}
}

func TestGraphQL_Peak(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	body := strings.NewReader(`{"query": "{ peak { location { lat lon } distance_km } }"}`)
	req := httptest.NewRequest("POST", "/graphql", body)
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Peak struct {
				Location   domain.Coordinate `json:"location"`
				DistanceKm float64           `json:"distance_km"`
			} `json:"peak"`
		} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Data.Peak.Location.Lat != domain.Peak.Lat {
		t.Errorf("expected peak lat %f, got %f", domain.Peak.Lat, result.Data.Peak.Location.Lat)
	}
}

func TestGraphQL_BadAngle(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	body := strings.NewReader(`{"query": "{ viewpoint(angle: 400) { angle } }"}`)
	req := httptest.NewRequest("POST", "/graphql", body)
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req, -1)
	var result struct {
		Errors []interface{} `json:"errors"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Errors) == 0 {
		t.Error("expected graphql error for out-of-range angle")
	}
}

// ---- X-API-Version header ----

func TestAPIVersionHeader(t *testing.T) {
	app, _ := setupApp(t, fakeLoader)

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	v := resp.Header.Get("X-API-Version")
	if v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}
