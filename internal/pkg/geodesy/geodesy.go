package geodesy

import (
	"math"

	"github.com/mbridger/peakring/internal/core/domain"
)

const earthRadiusKm = 6371.0

// DestinationPoint returns the point reached by travelling distanceKm along a
// great circle from origin at the given initial bearing. The bearing does not
// need to be pre-normalized. Valid for the small distances used here; exact
// pole crossings are not handled.
func DestinationPoint(origin domain.Coordinate, distanceKm, bearingDeg float64) domain.Coordinate {
	delta := distanceKm / earthRadiusKm
	theta := toRad(bearingDeg)
	lat1 := toRad(origin.Lat)
	lon1 := toRad(origin.Lon)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return domain.Coordinate{Lat: toDeg(lat2), Lon: toDeg(lon2)}
}

// Bearing returns the initial great-circle bearing from one point to another
// in degrees, normalized into [0, 360).
func Bearing(from, to domain.Coordinate) float64 {
	phi1 := toRad(from.Lat)
	phi2 := toRad(to.Lat)
	deltaLon := toRad(to.Lon - from.Lon)

	y := math.Sin(deltaLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLon)

	return NormalizeAngle(toDeg(math.Atan2(y, x)))
}

// Haversine returns the great-circle distance in kilometres between two
// points.
func Haversine(a, b domain.Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// NormalizeAngle maps any angle into [0, 360). True modulo: negative inputs
// normalize correctly, unlike a truncating remainder.
func NormalizeAngle(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// NormalizeRelative maps any angle into [-180, 180].
func NormalizeRelative(deg float64) float64 {
	m := NormalizeAngle(deg)
	if m > 180 {
		m -= 360
	}
	return m
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
