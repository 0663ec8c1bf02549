package export

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/green"
	"github.com/dpup/greenwalk/internal/lib/metrics"
	"github.com/dpup/greenwalk/internal/lib/track"
)

// FeatureCollection builds a GeoJSON collection with a LineString feature for
// the track, a Polygon (or LineString while still open) for the green, and a
// MultiLineString of the bunker edges. Nil sessions and idle sessions are
// skipped.
func FeatureCollection(t *track.Session, g *green.Session, m metrics.Green) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if t != nil && t.IsStarted() {
		line := make(orb.LineString, 0, t.PivotCount()+2)
		for _, s := range t.Points() {
			line = append(line, toOrb(s.Point))
		}
		f := geojson.NewFeature(line)
		tm := t.Metrics()
		f.Properties["kind"] = "track"
		f.Properties["total_distance_m"] = tm.TotalDistanceM
		f.Properties["leg_distance_m"] = tm.LegDistanceM
		f.Properties["pivot_count"] = tm.PivotCount
		f.Properties["active"] = t.IsActive()
		if tm.ElevationDeltaM != nil {
			f.Properties["elevation_delta_m"] = *tm.ElevationDeltaM
		}
		fc.Append(f)
	}

	if g != nil && g.Len() > 0 {
		vertices := g.Vertices()
		var geometry orb.Geometry
		if g.IsClosed() {
			ring := make(orb.Ring, 0, len(vertices)+1)
			for _, v := range vertices {
				ring = append(ring, toOrb(v.Point))
			}
			ring = append(ring, toOrb(vertices[0].Point))
			geometry = orb.Polygon{ring}
		} else {
			line := make(orb.LineString, 0, len(vertices))
			for _, v := range vertices {
				line = append(line, toOrb(v.Point))
			}
			geometry = line
		}

		f := geojson.NewFeature(geometry)
		f.Properties["kind"] = "green"
		f.Properties["state"] = g.State().String()
		f.Properties["perimeter_m"] = m.PerimeterM
		f.Properties["area_m2"] = m.AreaM2
		f.Properties["bunker_length_m"] = m.BunkerLengthM
		f.Properties["bunker_percentage"] = m.BunkerPercentage
		fc.Append(f)

		if bunkers := bunkerEdges(vertices, g.IsClosed()); len(bunkers) > 0 {
			bf := geojson.NewFeature(bunkers)
			bf.Properties["kind"] = "bunker"
			fc.Append(bf)
		}
	}

	return fc
}

// MarshalGeoJSON renders the collection built by FeatureCollection
func MarshalGeoJSON(t *track.Session, g *green.Session, m metrics.Green) ([]byte, error) {
	data, err := FeatureCollection(t, g, m).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// bunkerEdges returns each edge whose destination vertex is tagged Bunker
func bunkerEdges(vertices []geo.Vertex, closed bool) orb.MultiLineString {
	var edges orb.MultiLineString
	n := len(vertices)
	if n < 2 {
		return nil
	}
	last := n - 1
	if closed {
		last = n
	}
	for i := 0; i < last; i++ {
		from, to := vertices[i], vertices[(i+1)%n]
		if to.Tag == geo.Bunker {
			edges = append(edges, orb.LineString{toOrb(from.Point), toOrb(to.Point)})
		}
	}
	return edges
}

func toOrb(p geo.Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
