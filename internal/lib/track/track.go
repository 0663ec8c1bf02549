// Package track measures straight-line distance and elevation change from a
// start point through up to three pivots to the live position.
package track

import (
	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/filter"
	"github.com/dpup/greenwalk/internal/lib/geo"
)

// MaxPivots is the number of intermediate anchors a track may hold
const MaxPivots = 3

// Session is an immutable track. Commands return a new Session and leave the
// receiver untouched. The zero value is an idle session.
type Session struct {
	anchors []geo.Sample
	tip     geo.Sample
	active  bool
	// anchored is the summed length of the legs between anchors
	anchored float64
}

// Metrics holds the derived track measurements
type Metrics struct {
	TotalDistanceM float64 `json:"total_distance_m"`
	LegDistanceM   float64 `json:"leg_distance_m"`
	// ElevationDeltaM is nil when either end lacks altitude data
	ElevationDeltaM *float64 `json:"elevation_delta_m,omitempty"`
	PivotCount      int      `json:"pivot_count"`
}

// Start creates an active session anchored at first
func Start(first geo.Sample) Session {
	return Session{
		anchors: []geo.Sample{first},
		tip:     first,
		active:  true,
	}
}

// IsStarted reports whether the session was created by Start
func (s Session) IsStarted() bool { return len(s.anchors) > 0 }

// IsActive reports whether the session still accepts commands
func (s Session) IsActive() bool { return s.active }

// Anchors returns a copy of the start anchor followed by the pivots
func (s Session) Anchors() []geo.Sample {
	return append([]geo.Sample(nil), s.anchors...)
}

// Tip returns the live position and whether the session has one
func (s Session) Tip() (geo.Sample, bool) {
	return s.tip, s.IsStarted()
}

// PivotCount returns the number of pivots after the start anchor
func (s Session) PivotCount() int {
	if len(s.anchors) == 0 {
		return 0
	}
	return len(s.anchors) - 1
}

// AddPivot appends sample as a new anchor. The pivot is filtered against the
// last anchor so standing still does not create zero-length legs.
func (s Session) AddPivot(sample geo.Sample, f filter.PositionFilter) (Session, error) {
	if !s.active {
		return s, errs.ErrSessionNotActive
	}
	if s.PivotCount() >= MaxPivots {
		return s, errs.ErrPivotLimitReached
	}
	last := s.lastAnchor()
	if !f.Admit(last.Point, sample.Point) {
		return s, errs.ErrSampleRejected
	}

	next := s.clone()
	next.anchors = append(next.anchors, sample)
	next.anchored += geo.Distance(last.Point, sample.Point)
	next.tip = sample
	return next, nil
}

// UndoPivot removes the most recent pivot
func (s Session) UndoPivot() (Session, error) {
	if !s.active {
		return s, errs.ErrSessionNotActive
	}
	if s.PivotCount() == 0 {
		return s, errs.ErrNoPivotToUndo
	}

	next := s.clone()
	n := len(next.anchors)
	next.anchored -= geo.Distance(next.anchors[n-2].Point, next.anchors[n-1].Point)
	next.anchors = next.anchors[:n-1]
	if next.PivotCount() == 0 {
		next.anchored = 0
	}
	return next, nil
}

// UpdateTip replaces the live position. Tip updates are never filtered and
// never touch the anchors.
func (s Session) UpdateTip(sample geo.Sample) (Session, error) {
	if !s.active {
		return s, errs.ErrSessionNotActive
	}
	s.tip = sample
	return s, nil
}

// Finish freezes the session for export
func (s Session) Finish() (Session, error) {
	if !s.active {
		return s, errs.ErrSessionNotActive
	}
	s.active = false
	return s, nil
}

// LegDistance is the distance from the last anchor to the tip
func (s Session) LegDistance() float64 {
	if !s.IsStarted() {
		return 0
	}
	return geo.Distance(s.lastAnchor().Point, s.tip.Point)
}

// TotalDistance is the anchor chain length plus the live leg
func (s Session) TotalDistance() float64 {
	return s.anchored + s.LegDistance()
}

// Legs returns each anchor-to-anchor leg followed by the live leg
func (s Session) Legs() []float64 {
	if !s.IsStarted() {
		return nil
	}
	legs := make([]float64, 0, len(s.anchors))
	for i := 0; i+1 < len(s.anchors); i++ {
		legs = append(legs, geo.Distance(s.anchors[i].Point, s.anchors[i+1].Point))
	}
	return append(legs, s.LegDistance())
}

// ElevationDelta is tip altitude minus start altitude. ok is false when either
// altitude is missing.
func (s Session) ElevationDelta() (delta float64, ok bool) {
	if !s.IsStarted() || s.anchors[0].Altitude == nil || s.tip.Altitude == nil {
		return 0, false
	}
	return *s.tip.Altitude - *s.anchors[0].Altitude, true
}

// Points returns start, pivots and tip in walk order for export
func (s Session) Points() []geo.Sample {
	if !s.IsStarted() {
		return nil
	}
	return append(s.Anchors(), s.tip)
}

// Metrics derives all track measurements
func (s Session) Metrics() Metrics {
	m := Metrics{
		TotalDistanceM: s.TotalDistance(),
		LegDistanceM:   s.LegDistance(),
		PivotCount:     s.PivotCount(),
	}
	if delta, ok := s.ElevationDelta(); ok {
		m.ElevationDeltaM = &delta
	}
	return m
}

func (s Session) lastAnchor() geo.Sample {
	return s.anchors[len(s.anchors)-1]
}

func (s Session) clone() Session {
	next := s
	next.anchors = make([]geo.Sample, len(s.anchors), MaxPivots+1)
	copy(next.anchors, s.anchors)
	return next
}
