package filter

import "github.com/dpup/greenwalk/internal/lib/geo"

// DefaultThreshold is the movement threshold in meters applied when none is
// configured
const DefaultThreshold = 0.5

// PositionFilter decides whether a candidate fix moved far enough from the
// last recorded point to be kept. It only guards permanently recorded points
// (pivots and boundary vertices); live tip updates bypass it.
type PositionFilter struct {
	Threshold float64
}

// New creates a PositionFilter, falling back to DefaultThreshold for a
// non-positive threshold
func New(thresholdMeters float64) PositionFilter {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultThreshold
	}
	return PositionFilter{Threshold: thresholdMeters}
}

// Admit reports whether candidate is at least Threshold meters from last
func (f PositionFilter) Admit(last, candidate geo.Point) bool {
	return Admit(last, candidate, f.Threshold)
}

// Admit reports whether candidate is at least thresholdMeters from last
func Admit(last, candidate geo.Point, thresholdMeters float64) bool {
	return geo.Distance(last, candidate) >= thresholdMeters
}
