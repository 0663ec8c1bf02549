package geo

import "time"

// Point represents a geographic coordinate in decimal degrees
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Sample is a single fix delivered by a location source. Altitude and
// VerticalAccuracy are nil when the receiver did not report them.
type Sample struct {
	Point
	Altitude           *float64  `json:"alt,omitempty"`
	HorizontalAccuracy float64   `json:"hacc"`
	VerticalAccuracy   *float64  `json:"vacc,omitempty"`
	Timestamp          time.Time `json:"ts"`
}

// Tag marks what kind of edge was walked to reach a boundary vertex
type Tag int

const (
	Green Tag = iota
	Bunker
)

// String returns the lowercase name used in exports and JSON
func (t Tag) String() string {
	switch t {
	case Green:
		return "green"
	case Bunker:
		return "bunker"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Vertex is an admitted boundary sample with the tag that was active when it
// was recorded
type Vertex struct {
	Sample
	Tag Tag `json:"tag"`
}

// PlanarPoint is a position in local tangent-plane meters
type PlanarPoint struct {
	X float64
	Y float64
}

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline"`
	Points          []Point `json:"points"`
}

// AltitudeOr returns the sample altitude or fallback when it was not reported
func (s Sample) AltitudeOr(fallback float64) float64 {
	if s.Altitude == nil {
		return fallback
	}
	return *s.Altitude
}
