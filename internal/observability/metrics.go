// Package observability exposes flock metrics to Prometheus and bootstraps
// OpenTelemetry tracing.
package observability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

// StepCollector bundles the Prometheus metrics updated after every step.
// A nil *StepCollector is valid and records nothing.
type StepCollector struct {
	gatherer prometheus.Gatherer

	Steps         prometheus.Counter
	StepDuration  prometheus.Histogram
	Agents        prometheus.Gauge
	MeanSpeed     prometheus.Gauge
	MeanNeighbors prometheus.Gauge
	Fallbacks     prometheus.Counter
	Rejected      *prometheus.CounterVec
}

// NewStepCollector registers the flock metrics against reg, defaulting to
// the global Prometheus registry when nil. Registering twice on the same
// registry returns the collectors already in place.
func NewStepCollector(reg prometheus.Registerer) (*StepCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_steps_total",
		Help: "Total number of completed simulation steps.",
	}), "flock_steps_total")
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flock_step_duration_seconds",
		Help:    "Wall time of one simulation step in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "flock_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	agents, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flock_agents",
		Help: "Number of agents in the flock.",
	}), "flock_agents")
	if err != nil {
		return nil, err
	}
	meanSpeed, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flock_mean_speed",
		Help: "Mean agent speed after the last step.",
	}), "flock_mean_speed")
	if err != nil {
		return nil, err
	}
	meanNeighbors, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flock_mean_neighbors",
		Help: "Mean neighbor set size during the last step.",
	}), "flock_mean_neighbors")
	if err != nil {
		return nil, err
	}
	fallbacks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flock_neighbor_fallbacks_total",
		Help: "Total number of neighbor queries that fell back to the closest agent.",
	}), "flock_neighbor_fallbacks_total")
	if err != nil {
		return nil, err
	}
	rejected, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flock_rejected_messages_total",
		Help: "Total number of engine messages rejected by the flock actor, labeled by kind.",
	}, []string{"kind"}), "flock_rejected_messages_total")
	if err != nil {
		return nil, err
	}

	return &StepCollector{
		gatherer:      gatherer,
		Steps:         steps,
		StepDuration:  duration,
		Agents:        agents,
		MeanSpeed:     meanSpeed,
		MeanNeighbors: meanNeighbors,
		Fallbacks:     fallbacks,
		Rejected:      rejected,
	}, nil
}

// Observe records one completed step.
func (c *StepCollector) Observe(info flock.StepInfo, meanSpeed float64) {
	if c == nil {
		return
	}
	c.Steps.Inc()
	c.StepDuration.Observe(info.Duration.Seconds())
	c.Agents.Set(float64(info.Agents))
	c.MeanSpeed.Set(meanSpeed)
	c.MeanNeighbors.Set(info.MeanNeighbors)
	c.Fallbacks.Add(float64(info.Fallbacks))
}

// Reject counts a message the flock actor refused, e.g. "tick" or "config".
func (c *StepCollector) Reject(kind string) {
	if c == nil {
		return
	}
	c.Rejected.WithLabelValues(kind).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *StepCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
