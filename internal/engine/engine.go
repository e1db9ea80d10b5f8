// Package engine runs a flock inside a goakt actor system. The renderer or the
// headless loop drives it with ticks and reads snapshots from a channel.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/observability"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

const (
	systemName  = "FlockWorld"
	flockActor  = "flock"
	tracerName  = "github.com/lao-tseu-is-alive/go-flock-simulation/internal/engine"
	defaultWait = 2 * time.Second
)

// Options configures Start. Zero values pick sensible defaults.
type Options struct {
	Population int
	Seed       uint64 // 0 picks a random seed
	Workers    int
	Spawn      flock.SpawnConfig
	Flock      flock.Config

	Logger   log.Logger
	Metrics  *observability.StepCollector
	Recorder *telemetry.Recorder
	Tracer   trace.Tracer

	SnapshotBuffer int           // capacity of the snapshot channel, 1 by default
	AskTimeout     time.Duration // State timeout, 2s by default
}

// Snapshot is the committed flock after a step, pushed to the renderer.
type Snapshot struct {
	Step    uint64
	SimTime float64
	Agents  []flock.AgentState
	Info    flock.StepInfo
	Stats   telemetry.StepStats
	Config  flock.Config
}

// Engine is the client side of the flock actor.
type Engine struct {
	system     actor.ActorSystem
	pid        *actor.PID
	snapshotCh chan *Snapshot
	logger     log.Logger
	askTimeout time.Duration
}

// Start validates opts, builds the initial flock, starts the actor system and
// spawns the flock actor.
func Start(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = log.DiscardLogger
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.SnapshotBuffer < 1 {
		opts.SnapshotBuffer = 1
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = defaultWait
	}
	if opts.Seed == 0 {
		opts.Seed = rand.Uint64()
	}

	build := func(resets uint64) (*flock.Simulation, error) {
		return flock.Initialize(opts.Population, opts.Spawn, opts.Flock,
			flock.WithSeed(opts.Seed+resets),
			flock.WithWorkers(opts.Workers),
			flock.WithLogger(opts.Logger),
		)
	}
	sim, err := build(0)
	if err != nil {
		return nil, fmt.Errorf("failed to build flock: %w", err)
	}

	system, err := actor.NewActorSystem(systemName,
		actor.WithLogger(opts.Logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}

	snapshotCh := make(chan *Snapshot, opts.SnapshotBuffer)
	pid, err := system.Spawn(ctx, flockActor,
		newFlockActor(sim, build, snapshotCh, opts.Metrics, opts.Recorder, opts.Tracer))
	if err != nil {
		_ = system.Stop(ctx)
		return nil, fmt.Errorf("failed to spawn flock: %w", err)
	}

	opts.Logger.Infof("engine started: %d agents, seed %d", opts.Population, opts.Seed)
	return &Engine{
		system:     system,
		pid:        pid,
		snapshotCh: snapshotCh,
		logger:     opts.Logger,
		askTimeout: opts.AskTimeout,
	}, nil
}

// Tick asks the flock to advance by dt towards attractor. It returns once the
// tick is queued; the resulting snapshot arrives on Snapshots.
func (e *Engine) Tick(ctx context.Context, dt float64, attractor geometry.Vector3D) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 || !attractor.IsFinite() {
		return fmt.Errorf("%w: dt=%v attractor=%v", flock.ErrInvalidStep, dt, attractor)
	}
	msg, err := newTick(dt, attractor)
	if err != nil {
		return err
	}
	return e.tell(ctx, msg)
}

// UpdateConfig replaces the flock rules before the next tick.
func (e *Engine) UpdateConfig(ctx context.Context, cfg flock.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	msg, err := newConfigUpdate(cfg)
	if err != nil {
		return err
	}
	return e.tell(ctx, msg)
}

// Reset respawns the flock with a new seed, keeping the current rules.
func (e *Engine) Reset(ctx context.Context) error {
	msg, err := newReset()
	if err != nil {
		return err
	}
	return e.tell(ctx, msg)
}

// State asks the flock actor for its current status. Messages told before
// State are processed first.
func (e *Engine) State(ctx context.Context) (Status, error) {
	reply, err := actor.Ask(ctx, e.pid, &emptypb.Empty{}, e.askTimeout)
	if err != nil {
		return Status{}, fmt.Errorf("flock state: %w", err)
	}
	env, ok := reply.(*structpb.Struct)
	if !ok || kindOf(env) != kindStatus {
		return Status{}, fmt.Errorf("flock state: unexpected reply %T", reply)
	}
	var st Status
	if err := decode(env, &st); err != nil {
		return Status{}, err
	}
	return st, nil
}

// Snapshots delivers the latest committed flock. Snapshots are dropped
// rather than queued when the reader falls behind.
func (e *Engine) Snapshots() <-chan *Snapshot {
	return e.snapshotCh
}

// Stop shuts the actor system down.
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("engine stopping")
	return e.system.Stop(ctx)
}

func (e *Engine) tell(ctx context.Context, msg *structpb.Struct) error {
	if err := actor.Tell(ctx, e.pid, msg); err != nil {
		return fmt.Errorf("flock %s: %w", kindOf(msg), err)
	}
	return nil
}
