// Package metrics derives perimeter, bunker coverage and area from a boundary
// vertex sequence. Every function is pure; results are recomputed on each call
// and never cached across mutations.
package metrics

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/geo"
)

// DefaultAreaFloor is the area in square meters below which Calculator
// reports zero
const DefaultAreaFloor = 1.0

// Green holds the derived measurements of a mapped green
type Green struct {
	PerimeterM       float64 `json:"perimeter_m"`
	BunkerLengthM    float64 `json:"bunker_length_m"`
	BunkerPercentage int     `json:"bunker_percentage"`
	AreaM2           float64 `json:"area_m2"`
	VertexCount      int     `json:"vertex_count"`
}

// Calculator computes Green metrics with a configurable area noise floor
type Calculator struct {
	// AreaFloor snaps areas below this many square meters to zero. Zero
	// disables snapping.
	AreaFloor float64
}

// NewCalculator creates a Calculator with the given area floor
func NewCalculator(areaFloor float64) Calculator {
	return Calculator{AreaFloor: areaFloor}
}

// Compute derives all metrics for vertices
func (c Calculator) Compute(vertices []geo.Vertex, closed bool) Green {
	perimeter := Perimeter(vertices, closed)
	bunker := BunkerLength(vertices, closed)
	return Green{
		PerimeterM:       perimeter,
		BunkerLengthM:    bunker,
		BunkerPercentage: BunkerPercentage(bunker, perimeter),
		AreaM2:           c.Area(vertices),
		VertexCount:      len(vertices),
	}
}

// Area returns the shoelace area with the noise floor applied, or zero for
// fewer than three vertices
func (c Calculator) Area(vertices []geo.Vertex) float64 {
	area, err := Area(vertices)
	if err != nil {
		return 0
	}
	if area < c.AreaFloor {
		return 0
	}
	return area
}

// Perimeter sums consecutive edge lengths, including last→first when closed
func Perimeter(vertices []geo.Vertex, closed bool) float64 {
	total := 0.0
	forEachEdge(vertices, closed, func(from, to geo.Vertex) {
		total += geo.Distance(from.Point, to.Point)
	})
	return total
}

// BunkerLength sums the edges whose destination vertex is tagged Bunker
func BunkerLength(vertices []geo.Vertex, closed bool) float64 {
	total := 0.0
	forEachEdge(vertices, closed, func(from, to geo.Vertex) {
		switch to.Tag {
		case geo.Bunker:
			total += geo.Distance(from.Point, to.Point)
		case geo.Green:
		}
	})
	return total
}

// BunkerPercentage returns bunkerLength as a rounded percentage of perimeter
func BunkerPercentage(bunkerLength, perimeter float64) int {
	if perimeter <= 0 {
		return 0
	}
	return int(math.Round(bunkerLength / perimeter * 100))
}

// Area projects the vertices onto a tangent plane anchored at the first
// vertex's latitude and returns the planar area of the closed ring. Accurate
// for green-sized extents only.
func Area(vertices []geo.Vertex) (float64, error) {
	n := len(vertices)
	if n < 3 {
		return 0, errs.ErrInsufficientVertices
	}

	lat0 := vertices[0].Latitude
	origin := geo.Project(vertices[0].Point, lat0)
	ring := make(orb.Ring, 0, n+1)
	for _, v := range vertices {
		// relative to the first vertex to keep the products small
		p := geo.Project(v.Point, lat0)
		ring = append(ring, orb.Point{p.X - origin.X, p.Y - origin.Y})
	}
	ring = append(ring, ring[0])

	return math.Abs(planar.Area(ring)), nil
}

func forEachEdge(vertices []geo.Vertex, closed bool, fn func(from, to geo.Vertex)) {
	for i := 0; i+1 < len(vertices); i++ {
		fn(vertices[i], vertices[i+1])
	}
	if closed && len(vertices) > 1 {
		fn(vertices[len(vertices)-1], vertices[0])
	}
}
