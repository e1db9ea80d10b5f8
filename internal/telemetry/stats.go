// Package telemetry computes per-step flock statistics and writes them as CSV.
package telemetry

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// StepStats is one row of flock.csv.
type StepStats struct {
	RunID   string  `csv:"run_id"`
	Step    uint64  `csv:"step"`
	SimTime float64 `csv:"sim_time"`
	Agents  int     `csv:"agents"`

	// Speed distribution
	MeanSpeed float64 `csv:"mean_speed"`
	StdSpeed  float64 `csv:"std_speed"`
	MinSpeed  float64 `csv:"min_speed"`
	P50Speed  float64 `csv:"p50_speed"`
	P90Speed  float64 `csv:"p90_speed"`
	MaxSpeed  float64 `csv:"max_speed"`

	// Polarization is |mean of unit velocities|: 1 when every agent flies the
	// same way, close to 0 for a disordered flock.
	Polarization float64 `csv:"polarization"`

	CentroidX float64 `csv:"centroid_x"`
	CentroidY float64 `csv:"centroid_y"`
	CentroidZ float64 `csv:"centroid_z"`
	Spread    float64 `csv:"spread"` // mean distance to the centroid

	// Copied from flock.StepInfo
	MeanNeighbors      float64 `csv:"mean_neighbors"`
	MeanCollisionRisks float64 `csv:"mean_collision_risks"`
	Fallbacks          int     `csv:"fallbacks"`
}

// Summarize computes the statistics of one committed flock state.
// An empty flock gives zero statistics.
func Summarize(step uint64, simTime float64, states []flock.AgentState) StepStats {
	s := StepStats{Step: step, SimTime: simTime, Agents: len(states)}
	n := len(states)
	if n == 0 {
		return s
	}

	speeds := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	zs := make([]float64, n)
	var heading geometry.Vector3D
	for i, a := range states {
		speeds[i] = a.Velocity.Len()
		xs[i], ys[i], zs[i] = a.Position.X, a.Position.Y, a.Position.Z
		heading = heading.Add(a.Velocity.Normalize())
	}

	s.MeanSpeed, s.StdSpeed = stat.MeanStdDev(speeds, nil)
	if n < 2 {
		s.StdSpeed = 0
	}
	s.MinSpeed = floats.Min(speeds)
	s.MaxSpeed = floats.Max(speeds)
	sort.Float64s(speeds)
	s.P50Speed = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	s.P90Speed = stat.Quantile(0.9, stat.Empirical, speeds, nil)

	s.Polarization = heading.Len() / float64(n)

	centroid := geometry.Vector3D{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
	s.CentroidX, s.CentroidY, s.CentroidZ = centroid.X, centroid.Y, centroid.Z

	dist := make([]float64, n)
	for i, a := range states {
		dist[i] = a.Position.DistanceTo(centroid)
	}
	s.Spread = stat.Mean(dist, nil)
	return s
}

// WithStepInfo copies the neighbor statistics of the step into s.
func (s StepStats) WithStepInfo(info flock.StepInfo) StepStats {
	s.MeanNeighbors = info.MeanNeighbors
	s.MeanCollisionRisks = info.MeanCollisionRisks
	s.Fallbacks = info.Fallbacks
	return s
}

// String is the compact form used in log lines.
func (s StepStats) String() string {
	return fmt.Sprintf("step=%d agents=%d speed=%.2f±%.2f polarization=%.3f spread=%.2f neighbors=%.2f",
		s.Step, s.Agents, s.MeanSpeed, s.StdSpeed, s.Polarization, s.Spread, s.MeanNeighbors)
}
