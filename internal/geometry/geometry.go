// Package geometry measures rooftop footprints drawn on a web map.
//
// Areas follow the convention of the browser drawing layer (Turf.js): a
// spherical-excess ring formula on a sphere with the WGS84 equatorial radius,
// outer ring minus holes. The lookup point is the midpoint of the footprint's
// bounding rectangle.
package geometry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/stwalsh4118/rainyield/internal/models"
)

// EarthRadiusMeters is the sphere radius used for area computations.
const EarthRadiusMeters = 6378137.0

// ErrInvalidCoordinates is returned when a position is outside the valid
// latitude/longitude range or is not a finite number.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Validate checks every position of the polygon. Degenerate rings (too few
// vertices, collinear points) are valid; they simply have zero area.
func Validate(p models.Polygon) error {
	for i, ring := range p.Coordinates {
		for j, pos := range ring {
			if !latLng(pos).IsValid() {
				return fmt.Errorf("%w: ring %d position %d has lng=%v lat=%v",
					ErrInvalidCoordinates, i, j, pos[0], pos[1])
			}
		}
	}
	return nil
}

// ValidatePoint checks a single lookup point.
func ValidatePoint(p models.GeoPoint) error {
	if !s2.LatLngFromDegrees(p.Lat, p.Lng).IsValid() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, p.Lat, p.Lng)
	}
	return nil
}

// Area returns the footprint area in square meters. It never returns a
// negative, NaN or infinite value.
func Area(p models.Polygon) float64 {
	if len(p.Coordinates) == 0 {
		return 0
	}

	total := math.Abs(ringArea(p.Coordinates[0]))
	for _, hole := range p.Coordinates[1:] {
		total -= math.Abs(ringArea(hole))
	}

	if math.IsNaN(total) || math.IsInf(total, 0) || total < 0 {
		return 0
	}
	return total
}

// ringArea is the signed area of a single ring.
func ringArea(ring [][2]float64) float64 {
	ring = closeRing(ring)
	n := len(ring) - 1
	if n <= 2 {
		return 0
	}

	var total float64
	for i := 0; i < n; i++ {
		lower := latLng(ring[i])
		middle := latLng(ring[(i+1)%n])
		upper := latLng(ring[(i+2)%n])
		dLng := upper.Lng - lower.Lng
		total += dLng.Radians() * math.Sin(middle.Lat.Radians())
	}

	return total * EarthRadiusMeters * EarthRadiusMeters / 2
}

// Centroid returns the center of the polygon's bounding rectangle.
// The second return value is false for an empty polygon.
func Centroid(p models.Polygon) (models.GeoPoint, bool) {
	rect := s2.EmptyRect()
	for _, ring := range p.Coordinates {
		for _, pos := range ring {
			rect = rect.AddPoint(latLng(pos))
		}
	}
	if rect.IsEmpty() {
		return models.GeoPoint{}, false
	}

	center := rect.Center()
	return models.GeoPoint{
		Lat: center.Lat.Degrees(),
		Lng: center.Lng.Degrees(),
	}, true
}

// SelfIntersects reports whether any two non-adjacent edges of the outer ring
// cross each other. Touching edges and shared vertices do not count.
func SelfIntersects(p models.Polygon) bool {
	ring := closeRing(p.OuterRing())
	n := len(ring) - 1
	if n < 4 {
		return false
	}

	points := make([]s2.Point, len(ring))
	for i, pos := range ring {
		points[i] = s2.PointFromLatLng(latLng(pos))
	}

	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // first and last edge share the closing vertex
			}
			if s2.CrossingSign(points[i], points[i+1], points[j], points[j+1]) == s2.Cross {
				return true
			}
		}
	}
	return false
}

// Fingerprint returns a short stable key identifying the polygon's coordinates.
func Fingerprint(p models.Polygon) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", p.Coordinates)))
	return hex.EncodeToString(sum[:8])
}

// closeRing returns the ring with its first position repeated at the end
// when the input is not already closed.
func closeRing(ring [][2]float64) [][2]float64 {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	closed := make([][2]float64, len(ring), len(ring)+1)
	copy(closed, ring)
	return append(closed, ring[0])
}

// latLng converts a GeoJSON [lon, lat] position.
func latLng(pos [2]float64) s2.LatLng {
	return s2.LatLngFromDegrees(pos[1], pos[0])
}
