package domain

// Coordinate represents a geographic coordinate in degrees (spherical
// approximation, no ellipsoid correction).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
