package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/config"
	"github.com/dpup/greenwalk/internal/lib/errs"
	"github.com/dpup/greenwalk/internal/lib/filter"
	"github.com/dpup/greenwalk/internal/lib/geo"
	"github.com/dpup/greenwalk/internal/lib/green"
	"github.com/dpup/greenwalk/internal/lib/metrics"
	"github.com/dpup/greenwalk/internal/lib/track"
)

// Status is the location signal state shown to the player
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusOK        Status = "ok"
	StatusSearching Status = "searching"
)

// CourseService owns the track and mapping sessions of one player. Samples and
// commands are applied one at a time, in the order they arrive.
type CourseService struct {
	mu sync.Mutex

	playerID string
	filter   filter.PositionFilter
	mapper   green.Mapper
	calc     metrics.Calculator

	track   track.Session
	trackID string
	green   green.Session
	greenID string

	lastFix    *geo.Sample
	status     Status
	lastSource error
	lastActive time.Time

	logger     *zap.SugaredLogger
	collectors *Collectors
}

// NewCourseService creates a CourseService with the engine thresholds from
// cfg
func NewCourseService(playerID string, cfg config.EngineConfig, collectors *Collectors, logger *zap.SugaredLogger) *CourseService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if collectors == nil {
		collectors = NewCollectors(nil)
	}
	f := cfg.Filter()
	return &CourseService{
		playerID:   playerID,
		filter:     f,
		mapper:     green.NewMapper(f, cfg.Closure()),
		calc:       cfg.Calculator(),
		status:     StatusWaiting,
		lastActive: time.Now(),
		logger:     logger.With("player", playerID),
		collectors: collectors,
	}
}

// HandleSample applies a fix: it becomes the live track tip and the next
// boundary candidate
func (s *CourseService) HandleSample(sample geo.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	fix := sample
	s.lastFix = &fix
	if s.status != StatusOK {
		s.logger.Infow("Location signal acquired", "previous", s.status)
	}
	s.status = StatusOK
	s.lastSource = nil

	recorded := false
	if s.track.IsActive() {
		next, err := s.track.UpdateTip(sample)
		if err != nil {
			s.logger.Warnw("Track tip update refused", "session", s.trackID, "error", err)
			s.collectors.Samples.WithLabelValues("track", ErrorCode(err)).Inc()
		} else {
			s.track = next
			s.collectors.Samples.WithLabelValues("track", "tip").Inc()
		}
		recorded = true
	}

	if s.green.State() == green.Active {
		var outcome green.Outcome
		s.green, outcome = s.mapper.AcceptSample(s.green, sample)
		s.collectors.Samples.WithLabelValues("green", outcome.String()).Inc()
		if outcome == green.AutoClosed {
			s.logger.Infow("Green boundary closed automatically",
				"session", s.greenID, "vertices", s.green.Len())
		}
		recorded = true
	}

	if !recorded {
		s.collectors.Samples.WithLabelValues("none", "recorded").Inc()
	}
}

// HandleSourceError freezes the sessions at their last good fix until
// samples resume. It never fails.
func (s *CourseService) HandleSourceError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	if s.status != StatusSearching {
		s.logger.Warnw("Location source unavailable", "error", err)
	}
	s.status = StatusSearching
	s.lastSource = err
	s.collectors.SourceErrors.WithLabelValues(sourceReason(err)).Inc()
}

// StartTrack begins a new track at the last fix, discarding any previous one
func (s *CourseService) StartTrack() (Snapshot, error) {
	return s.command("start_track", func() error {
		fix, err := s.requireFix()
		if err != nil {
			return err
		}
		s.track = track.Start(fix)
		s.trackID = uuid.NewString()
		s.logger.Infow("Track started", "session", s.trackID)
		return nil
	})
}

// AddPivot records the last fix as a pivot on the active track
func (s *CourseService) AddPivot() (Snapshot, error) {
	return s.command("add_pivot", func() error {
		if !s.track.IsActive() {
			return errs.ErrSessionNotActive
		}
		fix, err := s.requireFix()
		if err != nil {
			return err
		}
		next, err := s.track.AddPivot(fix, s.filter)
		if err != nil {
			return err
		}
		s.track = next
		return nil
	})
}

// UndoPivot removes the most recent pivot
func (s *CourseService) UndoPivot() (Snapshot, error) {
	return s.command("undo_pivot", func() error {
		next, err := s.track.UndoPivot()
		if err != nil {
			return err
		}
		s.track = next
		return nil
	})
}

// FinishTrack freezes the active track for export
func (s *CourseService) FinishTrack() (Snapshot, error) {
	return s.command("finish_track", func() error {
		next, err := s.track.Finish()
		if err != nil {
			return err
		}
		s.track = next
		s.logger.Infow("Track finished", "session", s.trackID,
			"total_distance_m", next.TotalDistance(), "pivots", next.PivotCount())
		return nil
	})
}

// StartMapping begins a new green boundary at the last fix, discarding any
// previous one
func (s *CourseService) StartMapping() (Snapshot, error) {
	return s.command("start_mapping", func() error {
		fix, err := s.requireFix()
		if err != nil {
			return err
		}
		s.green = green.Start(fix)
		s.greenID = uuid.NewString()
		s.logger.Infow("Green mapping started", "session", s.greenID)
		return nil
	})
}

// SetBunkerActive toggles bunker tagging for subsequent boundary vertices
func (s *CourseService) SetBunkerActive(active bool) (Snapshot, error) {
	return s.command("set_bunker", func() error {
		next, err := s.green.SetBunkerActive(active)
		if err != nil {
			return err
		}
		s.green = next
		return nil
	})
}

// HandleBunker applies a bunker toggle record from the location feed. A toggle
// outside an active mapping session is logged and dropped.
func (s *CourseService) HandleBunker(active bool) {
	if _, err := s.SetBunkerActive(active); err != nil {
		s.logger.Infow("Ignoring bunker record", "active", active, "error", err)
	}
}

// ForceCloseMapping closes the boundary loop where the player stands
func (s *CourseService) ForceCloseMapping() (Snapshot, error) {
	return s.command("force_close", func() error {
		next, err := s.green.ForceClose()
		if err != nil {
			return err
		}
		s.green = next
		return nil
	})
}

// ResetMapping discards the green boundary
func (s *CourseService) ResetMapping() (Snapshot, error) {
	return s.command("reset_mapping", func() error {
		if s.green.State() == green.Idle {
			return errs.ErrSessionNotActive
		}
		s.green = s.green.Reset()
		s.greenID = ""
		return nil
	})
}

// Sessions returns the current session values for export
func (s *CourseService) Sessions() (track.Session, green.Session, metrics.Green) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track, s.green, s.calc.Compute(s.green.Vertices(), s.green.IsClosed())
}

// LastActive returns when the player last sent a fix, a source failure or a
// command
func (s *CourseService) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *CourseService) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Snapshot returns a read-only view of both sessions with freshly computed
// metrics
func (s *CourseService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// command runs fn under the lock, records the result and returns a snapshot
// taken after fn
func (s *CourseService) command(name string, fn func() error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	err := fn()
	s.collectors.Commands.WithLabelValues(name, ErrorCode(err)).Inc()
	if err != nil {
		s.logger.Debugw("Command refused", "command", name, "error", err)
	}
	return s.snapshot(), err
}

func (s *CourseService) requireFix() (geo.Sample, error) {
	if s.lastFix == nil {
		return geo.Sample{}, errs.ErrSourceUnavailable
	}
	return *s.lastFix, nil
}

// ErrorCode returns a stable snake_case code for an engine error, "ok" for nil
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrSampleRejected):
		return "sample_rejected"
	case errors.Is(err, errs.ErrPivotLimitReached):
		return "pivot_limit_reached"
	case errors.Is(err, errs.ErrNoPivotToUndo):
		return "no_pivot_to_undo"
	case errors.Is(err, errs.ErrInsufficientVertices):
		return "insufficient_vertices"
	case errors.Is(err, errs.ErrSessionNotActive):
		return "session_not_active"
	case errors.Is(err, errs.ErrSourceUnavailable):
		return "source_unavailable"
	default:
		return "error"
	}
}

func sourceReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, errs.ErrSignalLost):
		return "signal_lost"
	case errors.Is(err, errs.ErrTimeout):
		return "timeout"
	default:
		return "other"
	}
}
