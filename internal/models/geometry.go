package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedGeometry is returned when the GeoJSON input is not a Polygon.
var ErrUnsupportedGeometry = errors.New("unsupported geometry")

// Polygon is a GeoJSON Polygon in WGS84: [rings][points][lon,lat].
// The first ring is the outer boundary, any further rings are holes.
type Polygon struct {
	Coordinates [][][2]float64
}

// GeoPoint is a latitude/longitude pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsEmpty reports whether the polygon has no vertices at all.
func (p Polygon) IsEmpty() bool {
	for _, ring := range p.Coordinates {
		if len(ring) > 0 {
			return false
		}
	}
	return true
}

// OuterRing returns the first ring, or nil for an empty polygon.
func (p Polygon) OuterRing() [][2]float64 {
	if len(p.Coordinates) == 0 {
		return nil
	}
	return p.Coordinates[0]
}

// MarshalJSON encodes the polygon as a GeoJSON geometry object.
func (p Polygon) MarshalJSON() ([]byte, error) {
	coords := p.Coordinates
	if coords == nil {
		coords = [][][2]float64{}
	}
	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: coords,
	}
	return json.Marshal(geom)
}

// UnmarshalJSON parses a GeoJSON Polygon, either bare or wrapped in a Feature
// as emitted by Leaflet's toGeoJSON. Altitude components are discarded.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var geom struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
		Geometry    json.RawMessage `json:"geometry"`
	}

	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal polygon: %w", err)
	}

	switch geom.Type {
	case "Feature":
		if len(geom.Geometry) == 0 || string(geom.Geometry) == "null" {
			return fmt.Errorf("%w: feature has no geometry", ErrUnsupportedGeometry)
		}
		return p.UnmarshalJSON(geom.Geometry)
	case "", "Polygon":
		var coords [][][2]float64
		if len(geom.Coordinates) > 0 {
			if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
				return fmt.Errorf("failed to unmarshal polygon coordinates: %w", err)
			}
		}
		p.Coordinates = coords
		return nil
	default:
		return fmt.Errorf("%w: expected Polygon type, got %s", ErrUnsupportedGeometry, geom.Type)
	}
}
