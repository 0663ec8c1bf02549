package server

import (
	"github.com/dpup/greenwalk/internal/lib/units"
	"github.com/dpup/greenwalk/internal/services"
)

// snapshotResponse is a snapshot plus its measurements in display units
type snapshotResponse struct {
	services.Snapshot
	Display display `json:"display"`
}

type display struct {
	System         units.System    `json:"system"`
	TotalDistance  *units.Quantity `json:"total_distance,omitempty"`
	LegDistance    *units.Quantity `json:"leg_distance,omitempty"`
	ElevationDelta *units.Quantity `json:"elevation_delta,omitempty"`
	Perimeter      *units.Quantity `json:"perimeter,omitempty"`
	Area           *units.Quantity `json:"area,omitempty"`
	BunkerLength   *units.Quantity `json:"bunker_length,omitempty"`
}

func newSnapshotResponse(snap services.Snapshot, sys units.System) snapshotResponse {
	d := display{System: sys}
	if t := snap.Track; t != nil {
		d.TotalDistance = quantity(sys.Distance(t.Metrics.TotalDistanceM))
		d.LegDistance = quantity(sys.Distance(t.Metrics.LegDistanceM))
		if t.Metrics.ElevationDeltaM != nil {
			d.ElevationDelta = quantity(sys.Elevation(*t.Metrics.ElevationDeltaM))
		}
	}
	if g := snap.Green; g != nil {
		d.Perimeter = quantity(sys.Distance(g.Metrics.PerimeterM))
		d.Area = quantity(sys.Area(g.Metrics.AreaM2))
		d.BunkerLength = quantity(sys.Distance(g.Metrics.BunkerLengthM))
	}
	return snapshotResponse{Snapshot: snap, Display: d}
}

func quantity(q units.Quantity) *units.Quantity {
	return &q
}
