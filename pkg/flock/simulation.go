// Package flock implements the boids flocking step: neighbor discovery, the
// blending of velocity matching, flock centering, collision avoidance and an
// external attractor, and a two-phase update in which every agent computes its
// next velocity from the same committed snapshot before any agent moves.
package flock

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// ErrUnknownAgent is returned when an agent index is out of range.
var ErrUnknownAgent = errors.New("unknown agent")

// StepInfo summarises the last completed step.
type StepInfo struct {
	Step               uint64        `json:"step"`
	Agents             int           `json:"agents"`
	MeanNeighbors      float64       `json:"meanNeighbors"`
	MeanCollisionRisks float64       `json:"meanCollisionRisks"`
	Fallbacks          int           `json:"fallbacks"` // agents whose only neighbor was the closest one
	Duration           time.Duration `json:"duration"`
}

// Simulation owns a fixed population of agents and advances it one step at a time.
// It is not safe for concurrent use: Step, SetConfig and the accessors must be
// serialised by the caller (internal/engine does it with an actor).
type Simulation struct {
	cfg    Config
	agents []Agent

	// committed positions, refreshed before each compute phase
	positions []geometry.Vector3D
	// per agent results of the last compute phase
	counts []neighborCount
	// identity processing order
	order []int

	pool   *workerPool
	rng    *rand.Rand
	logger log.Logger

	steps uint64
	last  StepInfo
}

type neighborCount struct {
	neighbors  int
	collisions int
	fellBack   bool
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger, log.DiscardLogger by default.
func WithLogger(logger log.Logger) Option {
	return func(s *Simulation) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRand sets the random source used by Initialize.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSeed seeds the random source used by Initialize, for reproducible runs.
func WithSeed(seed uint64) Option {
	return func(s *Simulation) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithWorkers spreads both phases over n goroutines. n <= 0 uses GOMAXPROCS.
// The result of a step does not depend on n.
func WithWorkers(n int) Option {
	return func(s *Simulation) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		s.pool = newWorkerPool(n)
	}
}

func newSimulation(cfg Config, opts []Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:    cfg,
		pool:   newWorkerPool(1),
		logger: log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s, nil
}

// Initialize creates agentCount agents positioned uniformly inside a sphere of
// spawn.Radius around the origin, projected on the motion plane, each moving
// at spawn.Speed in a random direction.
func Initialize(agentCount int, spawn SpawnConfig, cfg Config, opts ...Option) (*Simulation, error) {
	if agentCount < 0 {
		return nil, fmt.Errorf("%w: agent count must be >= 0, got %d", ErrInvalidPopulation, agentCount)
	}
	if err := spawn.Validate(); err != nil {
		return nil, err
	}
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}

	agents := make([]Agent, agentCount)
	for i := range agents {
		pos := geometry.RandomInUnitSphere(s.rng).Mul(spawn.Radius)
		vel := geometry.RandomOnUnitSphere(s.rng).Mul(spawn.Speed)
		agents[i] = Agent{
			Position: cfg.Plane.Project(pos),
			Velocity: vel,
		}
	}
	s.setAgents(agents)

	s.logger.Debugf("flock initialized: %d agents, spawn radius %.1f, spawn speed %.1f, %d workers",
		agentCount, spawn.Radius, spawn.Speed, s.pool.size)
	return s, nil
}

// New builds a Simulation from agents spawned elsewhere. The slice is copied
// and positions are projected on the motion plane.
func New(agents []Agent, cfg Config, opts ...Option) (*Simulation, error) {
	for i, a := range agents {
		if !a.Position.IsFinite() || !a.Velocity.IsFinite() {
			return nil, fmt.Errorf("%w: agent %d has a non finite position or velocity", ErrInvalidPopulation, i)
		}
	}
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}
	own := make([]Agent, len(agents))
	for i, a := range agents {
		own[i] = Agent{
			Position: cfg.Plane.Project(a.Position),
			Velocity: a.Velocity,
			Heading:  a.Heading,
		}
	}
	s.setAgents(own)

	s.logger.Debugf("flock created from %d agents", len(own))
	return s, nil
}

func (s *Simulation) setAgents(agents []Agent) {
	s.agents = agents
	s.positions = make([]geometry.Vector3D, len(agents))
	s.counts = make([]neighborCount, len(agents))
	s.order = make([]int, len(agents))
	for i := range agents {
		s.order[i] = i
		if agents[i].Heading.IsZero() {
			agents[i].Heading = initialHeading(agents[i].Velocity, s.cfg.Plane)
		}
	}
}

// initialHeading faces the in-plane part of v, or the first plane axis.
func initialHeading(v geometry.Vector3D, p geometry.Plane) geometry.Vector3D {
	dir := geometry.Plane{Normal: p.Normal}.Project(v).Normalize()
	if dir.IsZero() {
		u, _ := p.Basis()
		return u
	}
	return dir
}

// Step advances the flock by dt towards or away from attractor.
// Every agent first computes its pending velocity from the committed state of
// the previous step; only then are all agents committed. dt == 0 is valid and
// leaves positions unchanged. Invalid input is rejected before any agent changes.
func (s *Simulation) Step(dt float64, attractor geometry.Vector3D) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return fmt.Errorf("%w: dt must be a finite value >= 0, got %v", ErrInvalidStep, dt)
	}
	if !attractor.IsFinite() {
		return fmt.Errorf("%w: attractor %v is not finite", ErrInvalidStep, attractor)
	}

	start := time.Now()
	s.step(dt, attractor, s.order)
	s.steps++
	s.last = s.summarize(time.Since(start))
	return nil
}

// step is Step without validation, processing agents in the given order.
func (s *Simulation) step(dt float64, attractor geometry.Vector3D, order []int) {
	for i := range s.agents {
		s.positions[i] = s.agents[i].Position
	}
	cfg := s.cfg

	// Phase A: compute. Reads committed state only, writes pending fields.
	s.pool.run(order, func(worker, i int) {
		nb := &s.pool.scratch[worker]
		QueryNeighbors(i, s.positions, cfg, nb)
		s.agents[i].pendingVelocity = blendVelocity(s.agents, i, nb, attractor, cfg)
		s.counts[i] = neighborCount{
			neighbors:  len(nb.Neighbors),
			collisions: len(nb.CollisionRisks),
			fellBack:   nb.FellBack,
		}
	})

	// Phase B: commit. Each agent mutates only itself.
	s.pool.run(order, func(_, i int) {
		commit(&s.agents[i], dt, cfg)
	})
}

func (s *Simulation) summarize(d time.Duration) StepInfo {
	info := StepInfo{Step: s.steps, Agents: len(s.agents), Duration: d}
	if len(s.counts) == 0 {
		return info
	}
	var neighbors, collisions int
	for _, c := range s.counts {
		neighbors += c.neighbors
		collisions += c.collisions
		if c.fellBack {
			info.Fallbacks++
		}
	}
	n := float64(len(s.counts))
	info.MeanNeighbors = float64(neighbors) / n
	info.MeanCollisionRisks = float64(collisions) / n
	return info
}

// AgentStates returns a copy of the committed state of every agent.
func (s *Simulation) AgentStates() []AgentState {
	states := make([]AgentState, len(s.agents))
	for i := range s.agents {
		states[i] = s.agents[i].state(i)
	}
	return states
}

// Neighborhood runs the neighbor query for agent i against the committed state.
func (s *Simulation) Neighborhood(i int) (Neighborhood, error) {
	if i < 0 || i >= len(s.agents) {
		return Neighborhood{}, fmt.Errorf("%w: index %d, population %d", ErrUnknownAgent, i, len(s.agents))
	}
	positions := make([]geometry.Vector3D, len(s.agents))
	for j := range s.agents {
		positions[j] = s.agents[j].Position
	}
	var nb Neighborhood
	QueryNeighbors(i, positions, s.cfg, &nb)
	return nb, nil
}

// Config returns the rules in use.
func (s *Simulation) Config() Config {
	return s.cfg
}

// SetConfig replaces the rules for the following steps. An invalid config is
// rejected and the current one kept.
func (s *Simulation) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg != s.cfg {
		s.logger.Debugf("flock config updated: near=%.2f collision=%.2f speed=[%.2f, %.2f]",
			cfg.NearDistance, cfg.CollisionDistance, cfg.MinSpeed, cfg.MaxSpeed)
	}
	s.cfg = cfg
	return nil
}

// Len returns the population size.
func (s *Simulation) Len() int {
	return len(s.agents)
}

// Steps returns the number of completed steps.
func (s *Simulation) Steps() uint64 {
	return s.steps
}

// LastStep describes the most recent Step.
func (s *Simulation) LastStep() StepInfo {
	return s.last
}
