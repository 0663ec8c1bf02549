package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/twpayne/go-kml/v3"
	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/clients/location"
	"github.com/dpup/greenwalk/internal/config"
	"github.com/dpup/greenwalk/internal/export"
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/units"
	"github.com/dpup/greenwalk/internal/services"
)

type replayOptions struct {
	Mode        string
	Pivots      []int
	MaxAccuracy float64
	Units       units.System
}

type replayResult struct {
	Mode     string
	Fixes    int
	Snapshot services.Snapshot
	KML      []byte
	GeoJSON  []byte
}

// replayer starts the session on the first fix and adds pivots at the
// requested fix numbers
type replayer struct {
	svc     *services.CourseService
	mode    string
	pivotAt map[int]bool
	fixes   int
	logger  *zap.SugaredLogger
}

func (r *replayer) HandleSample(sample geo.Sample) {
	r.svc.HandleSample(sample)
	r.fixes++

	if r.fixes == 1 {
		var err error
		if r.mode == "green" {
			_, err = r.svc.StartMapping()
		} else {
			_, err = r.svc.StartTrack()
		}
		if err != nil {
			r.logger.Warnw("Could not start session", "mode", r.mode, "error", err)
		}
		return
	}

	if r.mode == "track" && r.pivotAt[r.fixes] {
		if _, err := r.svc.AddPivot(); err != nil {
			r.logger.Warnw("Pivot refused", "fix", r.fixes, "error", err)
		}
	}
}

func (r *replayer) HandleSourceError(err error) {
	r.logger.Infow("Recorded source failure", "fix", r.fixes, "error", err)
	r.svc.HandleSourceError(err)
}

func (r *replayer) HandleBunker(active bool) {
	r.logger.Debugw("Recorded bunker toggle", "fix", r.fixes, "active", active)
	r.svc.HandleBunker(active)
}

func replay(ctx context.Context, in io.Reader, engine config.EngineConfig, opts replayOptions, logger *zap.SugaredLogger) (*replayResult, error) {
	if opts.Mode != "track" && opts.Mode != "green" {
		return nil, fmt.Errorf("unknown mode %q, want track or green", opts.Mode)
	}
	if opts.Units == "" {
		opts.Units = units.Imperial
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	pivotAt := make(map[int]bool, len(opts.Pivots))
	for _, n := range opts.Pivots {
		pivotAt[n] = true
	}
	r := &replayer{
		svc:     services.NewCourseService("replay", engine, nil, logger),
		mode:    opts.Mode,
		pivotAt: pivotAt,
		logger:  logger,
	}

	source := location.NewStreamSource(in,
		location.WithMaxAccuracy(opts.MaxAccuracy),
		location.WithLogger(logger),
	)
	if err := source.Run(ctx, r); err != nil {
		return nil, err
	}
	if r.fixes == 0 {
		return nil, errors.New("no usable fixes in input")
	}

	if opts.Mode == "track" {
		if _, err := r.svc.FinishTrack(); err != nil {
			return nil, fmt.Errorf("failed to finish track: %w", err)
		}
	} else if snap := r.svc.Snapshot(); snap.Green == nil || snap.Green.State != "closed" {
		if _, err := r.svc.ForceCloseMapping(); err != nil {
			return nil, fmt.Errorf("failed to close green: %w", err)
		}
	}

	tr, gr, m := r.svc.Sessions()
	result := &replayResult{Mode: opts.Mode, Fixes: r.fixes, Snapshot: r.svc.Snapshot()}

	var placemark kml.Element
	var err error
	if opts.Mode == "track" {
		if placemark, err = export.TrackPlacemark("Track", tr, opts.Units); err != nil {
			return nil, err
		}
		result.GeoJSON, err = export.MarshalGeoJSON(&tr, nil, m)
	} else {
		if placemark, err = export.GreenPlacemark("Green", gr, m, opts.Units); err != nil {
			return nil, err
		}
		result.GeoJSON, err = export.MarshalGeoJSON(nil, &gr, m)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.WriteKML(&buf, "greenwalk replay", placemark); err != nil {
		return nil, err
	}
	result.KML = buf.Bytes()
	return result, nil
}

func printReplay(w io.Writer, r *replayResult, sys units.System) {
	fmt.Fprintf(w, "Replayed %d fixes (%s)\n", r.Fixes, r.Mode)

	if t := r.Snapshot.Track; t != nil && r.Mode == "track" {
		fmt.Fprintf(w, "  Total distance: %s\n", sys.Distance(t.Metrics.TotalDistanceM))
		fmt.Fprintf(w, "  Pivots: %d\n", t.Metrics.PivotCount)
		for i, leg := range t.Legs {
			fmt.Fprintf(w, "  Leg %d: %s\n", i+1, sys.Distance(leg))
		}
		if t.Metrics.ElevationDeltaM != nil {
			fmt.Fprintf(w, "  Elevation change: %s\n", sys.Elevation(*t.Metrics.ElevationDeltaM))
		} else {
			fmt.Fprintf(w, "  Elevation change: no data\n")
		}
	}

	if g := r.Snapshot.Green; g != nil && r.Mode == "green" {
		fmt.Fprintf(w, "  Vertices: %d\n", g.Metrics.VertexCount)
		fmt.Fprintf(w, "  Perimeter: %s\n", sys.Distance(g.Metrics.PerimeterM))
		fmt.Fprintf(w, "  Area: %s\n", sys.Area(g.Metrics.AreaM2))
		fmt.Fprintf(w, "  Bunker edge: %s (%d%%)\n", sys.Distance(g.Metrics.BunkerLengthM), g.Metrics.BunkerPercentage)
	}
}
