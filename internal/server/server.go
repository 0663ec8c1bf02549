// Package server exposes the player command surface and session snapshots
// over HTTP.
package server

import (
	"bytes"
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"github.com/twpayne/go-kml/v3"
	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/clients/location"
	"github.com/dpup/greenwalk/internal/export"
	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/units"
	"github.com/dpup/greenwalk/internal/services"
)

// Options configures the HTTP surface
type Options struct {
	// Units selects the display system of snapshot responses and exports.
	Units units.System
	// MaxAccuracy drops posted fixes with a worse horizontal accuracy, in
	// meters. Zero disables the gate.
	MaxAccuracy float64
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.SugaredLogger
}

type server struct {
	registry    *services.Registry
	system      units.System
	maxAccuracy float64
	logger      *zap.SugaredLogger
}

// New creates the fiber app serving registry
func New(registry *services.Registry, opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Units == "" {
		opts.Units = units.Imperial
	}
	s := &server{
		registry:    registry,
		system:      opts.Units,
		maxAccuracy: opts.MaxAccuracy,
		logger:      opts.Logger,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("greenwalk: live yardage and green mapping\n")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	players := app.Group("/api/v1/players/:id")
	players.Get("/", s.getSnapshot)
	players.Post("/samples", s.postSample)
	players.Post("/track/start", s.run((*services.CourseService).StartTrack))
	players.Post("/track/pivot", s.run((*services.CourseService).AddPivot))
	players.Post("/track/undo", s.run((*services.CourseService).UndoPivot))
	players.Post("/track/finish", s.run((*services.CourseService).FinishTrack))
	players.Post("/mapping/start", s.run((*services.CourseService).StartMapping))
	players.Post("/mapping/bunker", s.postBunker)
	players.Post("/mapping/close", s.run((*services.CourseService).ForceCloseMapping))
	players.Post("/mapping/reset", s.run((*services.CourseService).ResetMapping))
	players.Get("/export.kml", s.getKML)
	players.Get("/export.geojson", s.getGeoJSON)

	return app
}

type errorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code"`
	Snapshot services.Snapshot `json:"snapshot"`
}

func (s *server) run(cmd func(*services.CourseService) (services.Snapshot, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := cmd(s.registry.Get(c.Params("id")))
		return s.respond(c, snap, err)
	}
}

func (s *server) getSnapshot(c *fiber.Ctx) error {
	svc, ok := s.registry.Lookup(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown player")
	}
	return c.JSON(newSnapshotResponse(svc.Snapshot(), s.system))
}

func (s *server) postSample(c *fiber.Ctx) error {
	svc := s.registry.Get(c.Params("id"))
	body := c.Body()
	if !gjson.ValidBytes(body) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	_, err := location.Deliver(body, svc, s.maxAccuracy)
	switch {
	case errors.Is(err, location.ErrLowAccuracy):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{
			Error:    err.Error(),
			Code:     "low_accuracy",
			Snapshot: svc.Snapshot(),
		})
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(newSnapshotResponse(svc.Snapshot(), s.system))
}

func (s *server) postBunker(c *fiber.Ctx) error {
	active := gjson.GetBytes(c.Body(), "active")
	if active.Type != gjson.True && active.Type != gjson.False {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"active": true|false}`)
	}
	snap, err := s.registry.Get(c.Params("id")).SetBunkerActive(active.Bool())
	return s.respond(c, snap, err)
}

func (s *server) getKML(c *fiber.Ctx) error {
	svc, ok := s.registry.Lookup(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown player")
	}
	tr, gr, m := svc.Sessions()

	var placemarks []kml.Element
	if p, err := export.TrackPlacemark("Track", tr, s.system); err == nil {
		placemarks = append(placemarks, p)
	}
	if p, err := export.GreenPlacemark("Green", gr, m, s.system); err == nil {
		placemarks = append(placemarks, p)
	}
	if len(placemarks) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "nothing to export")
	}

	var buf bytes.Buffer
	if err := export.WriteKML(&buf, "greenwalk "+c.Params("id"), placemarks...); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/vnd.google-earth.kml+xml")
	return c.Send(buf.Bytes())
}

func (s *server) getGeoJSON(c *fiber.Ctx) error {
	svc, ok := s.registry.Lookup(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown player")
	}
	tr, gr, m := svc.Sessions()
	data, err := export.MarshalGeoJSON(&tr, &gr, m)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.Send(data)
}

func (s *server) respond(c *fiber.Ctx, snap services.Snapshot, err error) error {
	if err == nil {
		return c.JSON(newSnapshotResponse(snap, s.system))
	}

	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		s.logger.Errorw("Command failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(errorResponse{
		Error:    err.Error(),
		Code:     services.ErrorCode(err),
		Snapshot: snap,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrSampleRejected):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrPivotLimitReached),
		errors.Is(err, errs.ErrNoPivotToUndo),
		errors.Is(err, errs.ErrInsufficientVertices),
		errors.Is(err, errs.ErrSessionNotActive):
		return fiber.StatusConflict
	case errors.Is(err, errs.ErrSourceUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
