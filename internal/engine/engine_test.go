package engine

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/observability"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func startEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	ctx := context.Background()
	if opts.Flock == (flock.Config{}) {
		opts.Flock = flock.DefaultConfig()
	}
	if opts.Spawn == (flock.SpawnConfig{}) {
		opts.Spawn = flock.DefaultSpawnConfig()
	}
	e, err := Start(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Stop(ctx) })
	return e
}

// waitSnapshot reads snapshots until one for step arrives.
func waitSnapshot(t *testing.T, e *Engine, step uint64) *Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap := <-e.Snapshots():
			if snap.Step == step {
				return snap
			}
		case <-timeout:
			t.Fatalf("no snapshot for step %d", step)
			return nil
		}
	}
}

func TestEngine_TickAndState(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, Options{Population: 30, Seed: 5, SnapshotBuffer: 16})

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{X: 50}))
	}
	st, err := e.State(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), st.Steps)
	assert.Equal(t, 30, st.Agents)
	assert.InDelta(t, 0.5, st.SimTime, 1e-12)
	assert.Greater(t, st.MeanSpeed, 0.0)
	assert.Equal(t, flock.DefaultConfig(), st.Config)
}

func TestEngine_SnapshotsMatchDirectSimulation(t *testing.T) {
	ctx := context.Background()
	opts := Options{Population: 40, Seed: 11, SnapshotBuffer: 16}
	e := startEngine(t, opts)

	sim, err := flock.Initialize(40, flock.DefaultSpawnConfig(), flock.DefaultConfig(), flock.WithSeed(11))
	require.NoError(t, err)

	attractor := geometry.Vector3D{X: -20, Z: 35}
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Tick(ctx, 1.0/30, attractor))
		require.NoError(t, sim.Step(1.0/30, attractor))
	}

	snap := waitSnapshot(t, e, 3)
	assert.Equal(t, sim.AgentStates(), snap.Agents)
	assert.Equal(t, sim.LastStep().MeanNeighbors, snap.Info.MeanNeighbors)
	assert.Equal(t, 40, snap.Stats.Agents)
}

func TestEngine_UpdateConfig(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, Options{Population: 10, Seed: 1})

	cfg := flock.DefaultConfig()
	cfg.NearDistance = 55
	cfg.MinSpeed = 3
	cfg.Plane = geometry.Plane{Normal: geometry.AxisZ, Level: 2}
	require.NoError(t, e.UpdateConfig(ctx, cfg))

	st, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, st.Config)

	bad := flock.DefaultConfig()
	bad.MaxSpeed = -1
	assert.ErrorIs(t, e.UpdateConfig(ctx, bad), flock.ErrInvalidConfig)

	st, err = e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, st.Config, "a rejected config must not reach the actor")
}

func TestEngine_TickRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, Options{Population: 3, Seed: 1})

	assert.ErrorIs(t, e.Tick(ctx, -1, geometry.Vector3D{}), flock.ErrInvalidStep)
	assert.ErrorIs(t, e.Tick(ctx, math.NaN(), geometry.Vector3D{}), flock.ErrInvalidStep)
	assert.ErrorIs(t, e.Tick(ctx, 0.1, geometry.Vector3D{Y: math.Inf(1)}), flock.ErrInvalidStep)

	st, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.Steps)
}

func TestEngine_Reset(t *testing.T) {
	ctx := context.Background()
	e := startEngine(t, Options{Population: 12, Seed: 9})

	cfg := flock.DefaultConfig()
	cfg.CollisionDistance = 8
	require.NoError(t, e.UpdateConfig(ctx, cfg))
	for i := 0; i < 4; i++ {
		require.NoError(t, e.Tick(ctx, 0.05, geometry.Vector3D{}))
	}
	require.NoError(t, e.Reset(ctx))

	st, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.Steps)
	assert.Equal(t, 12, st.Agents)
	assert.Equal(t, 0.0, st.SimTime)
	assert.Equal(t, cfg, st.Config, "reset keeps the live tuning")
}

func TestEngine_StartRejectsInvalidOptions(t *testing.T) {
	ctx := context.Background()
	_, err := Start(ctx, Options{Population: -1, Flock: flock.DefaultConfig(), Spawn: flock.DefaultSpawnConfig()})
	assert.ErrorIs(t, err, flock.ErrInvalidPopulation)

	bad := flock.DefaultConfig()
	bad.VelocityBlendFactor = 3
	_, err = Start(ctx, Options{Population: 3, Flock: bad, Spawn: flock.DefaultSpawnConfig()})
	assert.ErrorIs(t, err, flock.ErrInvalidConfig)
}

func TestEngine_MetricsAndRejectedMessages(t *testing.T) {
	ctx := context.Background()
	metrics, err := observability.NewStepCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	e := startEngine(t, Options{Population: 8, Seed: 2, Metrics: metrics})

	require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{}))
	require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{}))

	// a malformed tick sent past the client-side checks
	malformed, err := structpb.NewStruct(map[string]any{"type": kindTick})
	require.NoError(t, err)
	require.NoError(t, e.tell(ctx, malformed))
	// a negative dt that only the simulation rejects
	negative, err := encode(kindTick, tickPayload{DT: -1})
	require.NoError(t, err)
	require.NoError(t, e.tell(ctx, negative))

	st, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Steps)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Steps))
	assert.Equal(t, 8.0, testutil.ToFloat64(metrics.Agents))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Rejected.WithLabelValues(kindTick)))
}

func TestEngine_TracesEveryStep(t *testing.T) {
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	e := startEngine(t, Options{Population: 5, Seed: 3, Tracer: tp.Tracer("test")})
	require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{}))
	require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{}))
	_, err := e.State(ctx)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "flock.step", s.Name())
	}
	attrs := map[string]bool{}
	for _, kv := range spans[1].Attributes() {
		attrs[string(kv.Key)] = true
	}
	assert.True(t, attrs["flock.step"])
	assert.True(t, attrs["flock.mean_speed"])
}

func TestEngine_RecordsTelemetry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rec, err := telemetry.NewRecorder(dir, 2)
	require.NoError(t, err)

	e := startEngine(t, Options{Population: 6, Seed: 4, Recorder: rec})
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Tick(ctx, 0.1, geometry.Vector3D{}))
	}
	_, err = e.State(ctx)
	require.NoError(t, err)
	require.NoError(t, e.Stop(ctx))
	require.NoError(t, rec.Close())

	raw, err := os.ReadFile(filepath.Join(dir, telemetry.FileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	// header, step 2, step 4
	assert.Len(t, lines, 3)
}

func TestMessages_RoundTrip(t *testing.T) {
	msg, err := newTick(0.25, geometry.Vector3D{X: 1.5, Y: -2, Z: 1e-7})
	require.NoError(t, err)
	assert.Equal(t, kindTick, kindOf(msg))

	var tick tickPayload
	require.NoError(t, decode(msg, &tick))
	assert.Equal(t, tickPayload{DT: 0.25, Attractor: geometry.Vector3D{X: 1.5, Y: -2, Z: 1e-7}}, tick)

	reset, err := newReset()
	require.NoError(t, err)
	assert.Equal(t, kindReset, kindOf(reset))
	assert.Error(t, decode(reset, &tick))
}
