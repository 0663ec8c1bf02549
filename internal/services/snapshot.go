package services

import (
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/metrics"
	"github.com/dpup/greenwalk/internal/lib/track"
)

// Snapshot is a read-only copy of a player's sessions. Nothing in it aliases
// engine state.
type Snapshot struct {
	PlayerID string         `json:"player_id"`
	Status   Status         `json:"status"`
	Source   string         `json:"source_error,omitempty"`
	LastFix  *geo.Sample    `json:"last_fix,omitempty"`
	Track    *TrackSnapshot `json:"track,omitempty"`
	Green    *GreenSnapshot `json:"green,omitempty"`
}

// TrackSnapshot describes a started track
type TrackSnapshot struct {
	ID       string        `json:"id"`
	Active   bool          `json:"active"`
	Anchors  []geo.Sample  `json:"anchors"`
	Tip      geo.Sample    `json:"tip"`
	Metrics  track.Metrics `json:"metrics"`
	Legs     []float64     `json:"legs_m"`
	Polyline geo.Polyline  `json:"polyline"`
}

// GreenSnapshot describes a started mapping session
type GreenSnapshot struct {
	ID           string        `json:"id"`
	State        string        `json:"state"`
	BunkerActive bool          `json:"bunker_active"`
	Vertices     []geo.Vertex  `json:"vertices"`
	Metrics      metrics.Green `json:"metrics"`
	Polyline     geo.Polyline  `json:"polyline"`
}

func (s *CourseService) snapshot() Snapshot {
	snap := Snapshot{
		PlayerID: s.playerID,
		Status:   s.status,
	}
	if s.lastSource != nil {
		snap.Source = s.lastSource.Error()
	}
	if s.lastFix != nil {
		fix := *s.lastFix
		snap.LastFix = &fix
	}

	if s.track.IsStarted() {
		tip, _ := s.track.Tip()
		snap.Track = &TrackSnapshot{
			ID:       s.trackID,
			Active:   s.track.IsActive(),
			Anchors:  s.track.Anchors(),
			Tip:      tip,
			Metrics:  s.track.Metrics(),
			Legs:     s.track.Legs(),
			Polyline: geo.EncodePolyline(geo.Points(s.track.Points())),
		}
	}

	if s.green.Len() > 0 {
		vertices := s.green.Vertices()
		points := make([]geo.Point, len(vertices))
		for i, v := range vertices {
			points[i] = v.Point
		}
		snap.Green = &GreenSnapshot{
			ID:           s.greenID,
			State:        s.green.State().String(),
			BunkerActive: s.green.BunkerActive(),
			Vertices:     vertices,
			Metrics:      s.calc.Compute(vertices, s.green.IsClosed()),
			Polyline:     geo.EncodePolyline(points),
		}
	}
	return snap
}
