package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dpup/greenwalk/internal/config"
	"github.com/dpup/greenwalk/internal/lib/geo"
)

// Registry hands out one CourseService per player
type Registry struct {
	cfg        config.EngineConfig
	collectors *Collectors
	logger     *zap.SugaredLogger

	mutex   sync.RWMutex
	players map[string]*CourseService
}

// NewRegistry creates an empty Registry
func NewRegistry(cfg config.EngineConfig, collectors *Collectors, logger *zap.SugaredLogger) *Registry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if collectors == nil {
		collectors = NewCollectors(nil)
	}
	return &Registry{
		cfg:        cfg,
		collectors: collectors,
		logger:     logger,
		players:    make(map[string]*CourseService),
	}
}

// Get returns the player's service, creating it on first use. Get counts as
// activity: the service is touched under the registry lock so a concurrent
// Sweep either sees the fresh timestamp or evicts the player before Get runs.
// Callers that keep the service past the idle window should use Sink instead.
func (r *Registry) Get(playerID string) *CourseService {
	r.mutex.RLock()
	svc, ok := r.players[playerID]
	if ok {
		svc.touch()
	}
	r.mutex.RUnlock()
	if ok {
		return svc
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if svc, ok := r.players[playerID]; ok {
		svc.touch()
		return svc
	}
	svc = NewCourseService(playerID, r.cfg, r.collectors, r.logger)
	r.players[playerID] = svc
	r.collectors.Players.Set(float64(len(r.players)))
	return svc
}

// Sink returns a location sink that resolves the player on every record, so a
// long lived feed follows the player across sweeps
func (r *Registry) Sink(playerID string) *PlayerSink {
	return &PlayerSink{registry: r, playerID: playerID}
}

// PlayerSink forwards feed records to whichever service the registry
// currently holds for a player
type PlayerSink struct {
	registry *Registry
	playerID string
}

func (p *PlayerSink) HandleSample(sample geo.Sample) {
	p.registry.Get(p.playerID).HandleSample(sample)
}

func (p *PlayerSink) HandleSourceError(err error) {
	p.registry.Get(p.playerID).HandleSourceError(err)
}

func (p *PlayerSink) HandleBunker(active bool) {
	p.registry.Get(p.playerID).HandleBunker(active)
}

// Lookup returns the player's service if it exists
func (r *Registry) Lookup(playerID string) (*CourseService, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	svc, ok := r.players[playerID]
	return svc, ok
}

// Len returns the number of registered players
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.players)
}

// Sweep drops players with no activity since cutoff and returns how many were
// removed
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var removed int
	for id, svc := range r.players {
		if svc.LastActive().Before(cutoff) {
			delete(r.players, id)
			removed++
		}
	}
	r.collectors.Players.Set(float64(len(r.players)))
	return removed
}
