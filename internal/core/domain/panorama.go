package domain

import "errors"

// Generation parameters for the viewpoint ring. These are properties of the
// published dataset, not runtime configuration: changing them changes every
// precomputed artifact.
const (
	// RingAngles is the number of viewpoints, one per whole compass degree.
	RingAngles = 360

	// RingDistanceKm is the distance of every viewpoint from the peak.
	RingDistanceKm = 8.919

	// HalfFOVDegrees is the half field of view around the bearing back to
	// the peak within which horizon samples are collected.
	HalfFOVDegrees = 45
)

// Peak is the summit every viewpoint looks back at (Provo Peak, Utah).
var Peak = Coordinate{Lat: 40.3908, Lon: -111.6458}

// RawHorizonSample is one horizon measurement as produced by the elevation
// collaborator: the terrain silhouette in one absolute compass direction.
type RawHorizonSample struct {
	Direction  int     `json:"direction"` // compass degrees, 0-359
	Elevation  float64 `json:"elevation"` // degrees above horizontal
	DistanceKm float64 `json:"distance_km"`
}

// HorizonSample is a RawHorizonSample re-expressed relative to the bearing
// back to the peak, in [-180, 180]. 0 means "straight at the peak".
type HorizonSample struct {
	Direction  int     `json:"direction"` // relative degrees, [-180, 180]
	Elevation  float64 `json:"elevation"`
	DistanceKm float64 `json:"distance_km"`
}

// Viewpoint is one generated observation point on the ring. Angle is both the
// generation index and the compass bearing from the peak at which the
// viewpoint sits. Horizon is sorted ascending by relative direction with one
// sample per queried degree.
type Viewpoint struct {
	Angle         int             `json:"angle"`
	Location      Coordinate      `json:"location"`
	BearingToPeak float64         `json:"bearing_to_peak"`
	Horizon       []HorizonSample `json:"horizon"`
}

// Dataset is the full ring: exactly RingAngles viewpoints, index-addressable
// by angle. Built once per process and never mutated afterwards.
type Dataset struct {
	Peak       Coordinate  `json:"peak"`
	DistanceKm float64     `json:"distance_km"`
	Viewpoints []Viewpoint `json:"viewpoints"`
}

// DirectionRange is an inclusive compass window. Start > End signals that the
// window wraps through 0°/360°, in which case the true window is
// [Start,359] ∪ [0,End].
type DirectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Wraps reports whether the window crosses the 0°/360° boundary.
func (r DirectionRange) Wraps() bool { return r.Start > r.End }

// Error sentinels for the generation pipeline. ErrDataLoad marks a failed
// elevation-data load: fatal to the current build attempt but retryable by a
// later call. ErrQueryRange marks a malformed direction range reaching the
// collaborator, which the range planner is supposed to make impossible.
var (
	ErrDataLoad      = errors.New("elevation data load failed")
	ErrQueryRange    = errors.New("invalid horizon query range")
	ErrSerialization = errors.New("dataset serialization failed")
)
