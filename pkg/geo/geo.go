// Package geo provides geographic utility functions for the map-matching
// engine.
//
// All distance calculations use the Haversine formula on WGS-84 coordinates.
package geo

import (
	"math"

	"github.com/gatdilshan/railway-safety-research/internal/model"
)

// EarthRadiusM is the mean radius of Earth in meters.
const EarthRadiusM = 6_371_000.0

// Distance returns the great-circle distance between two points in meters.
//
// Complexity: O(1)
func Distance(a, b model.Vertex) float64 {
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(a.Lat))*math.Cos(degToRad(b.Lat))*sinLon*sinLon

	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// Nearest returns the index of the vertex in the polyline closest to point,
// and its distance in meters. Ties are broken by lowest index. Panics if
// the polyline is empty — callers are expected to validate track length
// (≥ 2) before reaching this point.
func Nearest(point model.Vertex, polyline []model.Vertex) (index int, distanceM float64) {
	distanceM = Distance(point, polyline[0])
	index = 0
	for i := 1; i < len(polyline); i++ {
		d := Distance(point, polyline[i])
		if d < distanceM {
			distanceM = d
			index = i
		}
	}
	return index, distanceM
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
