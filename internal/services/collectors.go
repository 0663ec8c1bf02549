package services

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds the Prometheus metrics shared by every CourseService
type Collectors struct {
	Samples      *prometheus.CounterVec
	SourceErrors *prometheus.CounterVec
	Commands     *prometheus.CounterVec
	Players      prometheus.Gauge
}

// NewCollectors creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenwalk",
			Name:      "samples_total",
			Help:      "Location samples processed, by session mode and outcome.",
		}, []string{"mode", "outcome"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenwalk",
			Name:      "source_errors_total",
			Help:      "Location source failures reported to the engine.",
		}, []string{"reason"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenwalk",
			Name:      "commands_total",
			Help:      "Session commands, by command and result.",
		}, []string{"command", "result"}),
		Players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "greenwalk",
			Name:      "players",
			Help:      "Players with live sessions in the registry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Samples, c.SourceErrors, c.Commands, c.Players)
	}
	return c
}
