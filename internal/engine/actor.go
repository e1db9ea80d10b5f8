package engine

import (
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/observability"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

// FlockActor owns the authoritative flock. Messages are handled one at a
// time, so the simulation is never stepped and reconfigured concurrently.
type FlockActor struct {
	sim     *flock.Simulation
	build   func(resets uint64) (*flock.Simulation, error)
	resets  uint64
	simTime float64

	// Communication with the renderer
	snapshotCh chan<- *Snapshot

	metrics  *observability.StepCollector
	recorder *telemetry.Recorder
	tracer   trace.Tracer
}

func newFlockActor(sim *flock.Simulation, build func(uint64) (*flock.Simulation, error), snapshotCh chan<- *Snapshot,
	metrics *observability.StepCollector, recorder *telemetry.Recorder, tracer trace.Tracer) *FlockActor {
	return &FlockActor{
		sim:        sim,
		build:      build,
		snapshotCh: snapshotCh,
		metrics:    metrics,
		recorder:   recorder,
		tracer:     tracer,
	}
}

func (a *FlockActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Debugf("flock actor starting with %d agents", a.sim.Len())
	return nil
}

func (a *FlockActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("flock started: %d agents", a.sim.Len())
		a.pushSnapshot(a.snapshot(flock.StepInfo{Agents: a.sim.Len()}))

	case *structpb.Struct:
		switch kind := kindOf(msg); kind {
		case kindTick:
			a.handleTick(ctx, msg)
		case kindConfig:
			a.handleConfig(ctx, msg)
		case kindReset:
			a.handleReset(ctx)
		default:
			ctx.Logger().Warnf("flock actor ignoring message of type %q", kind)
			a.metrics.Reject("unknown")
		}

	case *emptypb.Empty:
		env, err := encode(kindStatus, a.status())
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(env)

	default:
		ctx.Unhandled()
	}
}

func (a *FlockActor) handleTick(ctx *actor.ReceiveContext, msg *structpb.Struct) {
	var tick tickPayload
	if err := decode(msg, &tick); err != nil {
		ctx.Logger().Warnf("flock actor rejected tick: %v", err)
		a.metrics.Reject(kindTick)
		return
	}

	_, span := a.tracer.Start(ctx.Context(), "flock.step",
		trace.WithAttributes(attribute.Float64("flock.dt", tick.DT)))
	defer span.End()

	if err := a.sim.Step(tick.DT, tick.Attractor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ctx.Logger().Warnf("flock actor rejected tick: %v", err)
		a.metrics.Reject(kindTick)
		return
	}
	a.simTime += tick.DT

	info := a.sim.LastStep()
	snap := a.snapshot(info)
	a.metrics.Observe(info, snap.Stats.MeanSpeed)
	if a.recorder.Due(info.Step) {
		if err := a.recorder.Record(snap.Stats); err != nil {
			ctx.Logger().Errorf("flock telemetry: %v", err)
		}
	}

	span.SetAttributes(
		attribute.Int64("flock.step", int64(info.Step)),
		attribute.Int("flock.agents", info.Agents),
		attribute.Float64("flock.mean_speed", snap.Stats.MeanSpeed),
		attribute.Float64("flock.mean_neighbors", info.MeanNeighbors),
	)
	a.pushSnapshot(snap)
}

func (a *FlockActor) handleConfig(ctx *actor.ReceiveContext, msg *structpb.Struct) {
	cfg := a.sim.Config()
	if err := decode(msg, &cfg); err != nil {
		ctx.Logger().Warnf("flock actor rejected config: %v", err)
		a.metrics.Reject(kindConfig)
		return
	}
	if err := a.sim.SetConfig(cfg); err != nil {
		ctx.Logger().Warnf("flock actor rejected config: %v", err)
		a.metrics.Reject(kindConfig)
	}
}

func (a *FlockActor) handleReset(ctx *actor.ReceiveContext) {
	a.resets++
	sim, err := a.build(a.resets)
	if err != nil {
		ctx.Logger().Errorf("flock reset failed: %v", err)
		a.metrics.Reject(kindReset)
		return
	}
	// keep the live tuning across restarts
	if err := sim.SetConfig(a.sim.Config()); err != nil {
		ctx.Logger().Errorf("flock reset failed: %v", err)
		a.metrics.Reject(kindReset)
		return
	}
	a.sim = sim
	a.simTime = 0
	ctx.Logger().Infof("flock restarted (%d): %d agents", a.resets, sim.Len())
	a.pushSnapshot(a.snapshot(flock.StepInfo{Agents: sim.Len()}))
}

func (a *FlockActor) snapshot(info flock.StepInfo) *Snapshot {
	states := a.sim.AgentStates()
	return &Snapshot{
		Step:    a.sim.Steps(),
		SimTime: a.simTime,
		Agents:  states,
		Info:    info,
		Stats:   telemetry.Summarize(a.sim.Steps(), a.simTime, states).WithStepInfo(info),
		Config:  a.sim.Config(),
	}
}

func (a *FlockActor) status() Status {
	info := a.sim.LastStep()
	stats := telemetry.Summarize(a.sim.Steps(), a.simTime, a.sim.AgentStates())
	return Status{
		Steps:         a.sim.Steps(),
		Agents:        a.sim.Len(),
		SimTime:       a.simTime,
		MeanSpeed:     stats.MeanSpeed,
		MeanNeighbors: info.MeanNeighbors,
		Fallbacks:     info.Fallbacks,
		Config:        a.sim.Config(),
	}
}

// pushSnapshot never blocks: when the renderer is behind the frame is dropped.
func (a *FlockActor) pushSnapshot(snap *Snapshot) {
	if a.snapshotCh == nil {
		return
	}
	select {
	case a.snapshotCh <- snap:
	default:
	}
}

func (a *FlockActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("flock actor stopped after %d steps", a.sim.Steps())
	return nil
}
