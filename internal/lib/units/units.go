// Package units converts SI measurements into the units golfers read on a
// yardage book.
package units

import "fmt"

const (
	metersPerYard = 0.9144
	metersPerFoot = 0.3048
	// square meters in one square yard
	squareMetersPerSquareYard = metersPerYard * metersPerYard
)

// MetersToYards converts meters to yards
func MetersToYards(m float64) float64 { return m / metersPerYard }

// YardsToMeters converts yards to meters
func YardsToMeters(yd float64) float64 { return yd * metersPerYard }

// MetersToFeet converts meters to feet
func MetersToFeet(m float64) float64 { return m / metersPerFoot }

// FeetToMeters converts feet to meters
func FeetToMeters(ft float64) float64 { return ft * metersPerFoot }

// SquareMetersToSquareYards converts an area in square meters to square yards
func SquareMetersToSquareYards(m2 float64) float64 { return m2 / squareMetersPerSquareYard }

// SquareYardsToSquareMeters converts an area in square yards to square meters
func SquareYardsToSquareMeters(yd2 float64) float64 { return yd2 * squareMetersPerSquareYard }

// System selects how measurements are displayed
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

// Quantity is a display value with its unit label
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

func (q Quantity) String() string {
	return fmt.Sprintf("%.1f %s", q.Value, q.Unit)
}

// ParseSystem returns the System named by s
func ParseSystem(s string) (System, error) {
	switch System(s) {
	case Metric, Imperial:
		return System(s), nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

// Distance renders a horizontal distance: yards for imperial
func (s System) Distance(m float64) Quantity {
	if s == Imperial {
		return Quantity{Value: MetersToYards(m), Unit: "yd"}
	}
	return Quantity{Value: m, Unit: "m"}
}

// Elevation renders a height change: feet for imperial
func (s System) Elevation(m float64) Quantity {
	if s == Imperial {
		return Quantity{Value: MetersToFeet(m), Unit: "ft"}
	}
	return Quantity{Value: m, Unit: "m"}
}

// Area renders an area: square yards for imperial
func (s System) Area(m2 float64) Quantity {
	if s == Imperial {
		return Quantity{Value: SquareMetersToSquareYards(m2), Unit: "yd²"}
	}
	return Quantity{Value: m2, Unit: "m²"}
}
