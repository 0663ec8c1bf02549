package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// EarthRadius is the mean earth radius in meters used by every calculation in
// the engine
const EarthRadius = 6371000

// Distance calculates the great-circle distance between two points in meters
// using the haversine formula. Every distance in the engine goes through it.
func Distance(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	lat1 := toRadians(p1.Latitude)
	lon1 := toRadians(p1.Longitude)
	lat2 := toRadians(p2.Latitude)
	lon2 := toRadians(p2.Longitude)

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Project maps p onto a local tangent plane whose east-west scale is taken
// from anchorLatitude. The result is only meaningful for small extents (a few
// hectares) around the anchor.
func Project(p Point, anchorLatitude float64) PlanarPoint {
	return PlanarPoint{
		X: toRadians(p.Longitude) * EarthRadius * math.Cos(toRadians(anchorLatitude)),
		Y: toRadians(p.Latitude) * EarthRadius,
	}
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !IsValid(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// IsValid reports whether latitude and longitude are in range
func IsValid(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

// EncodePolyline encodes points with the Google polyline algorithm
func EncodePolyline(points []Point) Polyline {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return Polyline{
		EncodedPolyline: string(polyline.EncodeCoords(coords)),
		Points:          points,
	}
}

// DecodePolyline decodes Google polyline string to point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !IsValid(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// Points extracts the positions of a sample sequence, preserving order
func Points(samples []Sample) []Point {
	points := make([]Point, len(samples))
	for i, s := range samples {
		points[i] = s.Point
	}
	return points
}

func toRadians(d float64) float64 {
	return d * math.Pi / 180
}
