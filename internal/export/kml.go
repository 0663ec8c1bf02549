// Package export serializes finished sessions for mapping tools: KML
// placemarks for Google Earth style viewers and GeoJSON for web maps.
package export

import (
	"fmt"
	"io"

	"github.com/twpayne/go-kml/v3"

	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/green"
	"github.com/dpup/greenwalk/internal/lib/metrics"
	"github.com/dpup/greenwalk/internal/lib/track"
	"github.com/dpup/greenwalk/internal/lib/units"
)

// TrackPlacemark renders a track as a LineString through start, pivots and
// the final position
func TrackPlacemark(name string, t track.Session, sys units.System) (kml.Element, error) {
	points := t.Points()
	if len(points) == 0 {
		return nil, errs.ErrSessionNotActive
	}

	m := t.Metrics()
	description := fmt.Sprintf("Total %s, last leg %s, %d pivots",
		sys.Distance(m.TotalDistanceM), sys.Distance(m.LegDistanceM), m.PivotCount)
	if m.ElevationDeltaM != nil {
		description += fmt.Sprintf(", elevation %+.1f %s",
			sys.Elevation(*m.ElevationDeltaM).Value, sys.Elevation(*m.ElevationDeltaM).Unit)
	}

	return kml.Placemark(
		kml.Name(name),
		kml.Description(description),
		kml.LineString(
			kml.Coordinates(coordinates(points)...),
		),
	), nil
}

// GreenPlacemark renders a mapped green as a Polygon whose outer ring repeats
// the first vertex as the closing coordinate
func GreenPlacemark(name string, g green.Session, m metrics.Green, sys units.System) (kml.Element, error) {
	vertices := g.Vertices()
	if len(vertices) < 3 {
		return nil, errs.ErrInsufficientVertices
	}

	samples := make([]geo.Sample, 0, len(vertices)+1)
	for _, v := range vertices {
		samples = append(samples, v.Sample)
	}
	samples = append(samples, vertices[0].Sample)

	description := fmt.Sprintf("Perimeter %s, area %s, bunker %d%% (%s)",
		sys.Distance(m.PerimeterM), sys.Area(m.AreaM2), m.BunkerPercentage, sys.Distance(m.BunkerLengthM))

	return kml.Placemark(
		kml.Name(name),
		kml.Description(description),
		kml.Polygon(
			kml.OuterBoundaryIs(
				kml.LinearRing(
					kml.Coordinates(coordinates(samples)...),
				),
			),
		),
	), nil
}

// WriteKML writes a KML document holding the given placemarks
func WriteKML(w io.Writer, name string, placemarks ...kml.Element) error {
	elements := append([]kml.Element{kml.Name(name)}, placemarks...)
	doc := kml.KML(
		kml.Document(elements...),
	)
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

// coordinates converts samples to lng,lat,alt triples; a missing altitude is
// written as zero
func coordinates(samples []geo.Sample) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(samples))
	for i, s := range samples {
		coords[i] = kml.Coordinate{
			Lon: s.Longitude,
			Lat: s.Latitude,
			Alt: s.AltitudeOr(0),
		}
	}
	return coords
}
