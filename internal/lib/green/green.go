// Package green records the boundary of a green as it is walked, tagging each
// edge as green fringe or bunker, and closes the loop automatically when the
// walker returns to the start.
package green

import (
	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/filter"
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/metrics"
)

// State is the lifecycle position of a mapping session
type State int

const (
	Idle State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome describes what AcceptSample did with a sample
type Outcome int

const (
	// Ignored: the session is idle or already closed
	Ignored Outcome = iota
	// Rejected: the sample was below the movement threshold
	Rejected
	Appended
	// AutoClosed: the sample was appended and closed the loop
	AutoClosed
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	case Appended:
		return "appended"
	case AutoClosed:
		return "auto_closed"
	default:
		return "unknown"
	}
}

// Closure holds the auto-closure thresholds
type Closure struct {
	// MinVertexCount must be exceeded before auto-closure is considered
	MinVertexCount int
	// MinPerimeter in meters the open boundary must exceed, so GPS noise near
	// the start cannot close the loop
	MinPerimeter float64
	// Radius in meters around the first vertex that triggers closure
	Radius float64
}

// DefaultClosure returns the recommended auto-closure thresholds
func DefaultClosure() Closure {
	return Closure{MinVertexCount: 5, MinPerimeter: 5, Radius: 1.0}
}

// Mapper applies the mapping commands with a fixed filter and closure policy
type Mapper struct {
	Filter  filter.PositionFilter
	Closure Closure
}

// NewMapper creates a Mapper
func NewMapper(f filter.PositionFilter, c Closure) Mapper {
	return Mapper{Filter: f, Closure: c}
}

// Session is an immutable mapping session. The zero value is Idle.
type Session struct {
	vertices []geo.Vertex
	state    State
	bunker   bool
}

// Start creates an Active session whose first vertex is tagged Green
func Start(first geo.Sample) Session {
	return Session{
		vertices: []geo.Vertex{{Sample: first, Tag: geo.Green}},
		state:    Active,
	}
}

// State returns the lifecycle state
func (s Session) State() State { return s.state }

// IsClosed reports whether the boundary loop is closed
func (s Session) IsClosed() bool { return s.state == Closed }

// BunkerActive reports whether new vertices are tagged Bunker
func (s Session) BunkerActive() bool { return s.bunker }

// Vertices returns a copy of the boundary in walk order
func (s Session) Vertices() []geo.Vertex {
	return append([]geo.Vertex(nil), s.vertices...)
}

// Len returns the vertex count
func (s Session) Len() int { return len(s.vertices) }

// SetBunkerActive changes the tag applied to subsequently admitted vertices.
// Existing vertices keep their tags. It has no effect on a closed session.
func (s Session) SetBunkerActive(active bool) (Session, error) {
	switch s.state {
	case Idle:
		return s, errs.ErrSessionNotActive
	case Closed:
		return s, nil
	}
	s.bunker = active
	return s, nil
}

// ForceClose closes the loop regardless of where the walker stands
func (s Session) ForceClose() (Session, error) {
	switch s.state {
	case Idle:
		return s, errs.ErrSessionNotActive
	case Closed:
		return s, nil
	}
	if len(s.vertices) < 3 {
		return s, errs.ErrInsufficientVertices
	}
	s.state = Closed
	return s, nil
}

// Reset discards the boundary and returns an Idle session
func (s Session) Reset() Session {
	return Session{}
}

// AcceptSample filters sample against the last vertex, appends it with the
// current tag and evaluates auto-closure
func (m Mapper) AcceptSample(s Session, sample geo.Sample) (Session, Outcome) {
	if s.state != Active {
		return s, Ignored
	}
	last := s.vertices[len(s.vertices)-1]
	if !m.Filter.Admit(last.Point, sample.Point) {
		return s, Rejected
	}

	tag := geo.Green
	if s.bunker {
		tag = geo.Bunker
	}

	next := s
	next.vertices = make([]geo.Vertex, len(s.vertices), len(s.vertices)+1)
	copy(next.vertices, s.vertices)
	next.vertices = append(next.vertices, geo.Vertex{Sample: sample, Tag: tag})

	if m.shouldClose(next.vertices) {
		next.state = Closed
		return next, AutoClosed
	}
	return next, Appended
}

func (m Mapper) shouldClose(vertices []geo.Vertex) bool {
	if len(vertices) <= m.Closure.MinVertexCount {
		return false
	}
	if metrics.Perimeter(vertices, false) <= m.Closure.MinPerimeter {
		return false
	}
	newest := vertices[len(vertices)-1]
	return geo.Distance(newest.Point, vertices[0].Point) < m.Closure.Radius
}
