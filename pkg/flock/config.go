package flock

import (
	"errors"
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

var (
	// ErrInvalidConfig is wrapped by every Config and SpawnConfig validation failure.
	ErrInvalidConfig = errors.New("invalid flock config")
	// ErrInvalidStep is returned by Step for a negative or non finite dt or attractor.
	ErrInvalidStep = errors.New("invalid step input")
	// ErrInvalidPopulation is returned when a population cannot be built.
	ErrInvalidPopulation = errors.New("invalid population")
)

// Config controls the flocking rules. It is read-only during a Step and can
// only be replaced between steps through Simulation.SetConfig.
type Config struct {
	// Interaction radii
	NearDistance           float64 `json:"nearDistance" yaml:"nearDistance"`                     // neighbors for matching and centering
	CollisionDistance      float64 `json:"collisionDistance" yaml:"collisionDistance"`           // personal space
	AttractorAvoidDistance float64 `json:"attractorAvoidDistance" yaml:"attractorAvoidDistance"` // closer than this, flee the attractor

	// Rule weights
	VelocityMatchingWeight    float64 `json:"velocityMatchingWeight" yaml:"velocityMatchingWeight"`
	FlockCenteringWeight      float64 `json:"flockCenteringWeight" yaml:"flockCenteringWeight"`
	CollisionAvoidanceWeight  float64 `json:"collisionAvoidanceWeight" yaml:"collisionAvoidanceWeight"` // negative repels
	AttractorAttractionWeight float64 `json:"attractorAttractionWeight" yaml:"attractorAttractionWeight"`
	AttractorAvoidanceWeight  float64 `json:"attractorAvoidanceWeight" yaml:"attractorAvoidanceWeight"`
	VelocityBlendFactor       float64 `json:"velocityBlendFactor" yaml:"velocityBlendFactor"` // 0 keeps the old velocity, 1 snaps to the new one

	// Speed limits
	MinSpeed float64 `json:"minSpeed" yaml:"minSpeed"`
	MaxSpeed float64 `json:"maxSpeed" yaml:"maxSpeed"`

	// FloorToMaxSpeed rescales a velocity slower than MinSpeed up to MaxSpeed
	// instead of MinSpeed. It reproduces the motion of the classic Unity boids
	// demo and is off by default.
	FloorToMaxSpeed bool `json:"floorToMaxSpeed" yaml:"floorToMaxSpeed"`

	// Plane is the motion plane; positions are projected on it after every commit.
	Plane geometry.Plane `json:"plane" yaml:"plane"`
}

// DefaultConfig returns the reference tuning of the boids demo.
func DefaultConfig() Config {
	return Config{
		NearDistance:              30,
		CollisionDistance:         5,
		AttractorAvoidDistance:    15,
		VelocityMatchingWeight:    0.01,
		FlockCenteringWeight:      0.15,
		CollisionAvoidanceWeight:  -0.5,
		AttractorAttractionWeight: 0.01,
		AttractorAvoidanceWeight:  0.75,
		VelocityBlendFactor:       0.25,
		MinSpeed:                  0,
		MaxSpeed:                  30,
		Plane:                     geometry.XZ,
	}
}

// Validate reports the first inconsistency found in c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"nearDistance", c.NearDistance},
		{"collisionDistance", c.CollisionDistance},
		{"attractorAvoidDistance", c.AttractorAvoidDistance},
		{"velocityMatchingWeight", c.VelocityMatchingWeight},
		{"flockCenteringWeight", c.FlockCenteringWeight},
		{"collisionAvoidanceWeight", c.CollisionAvoidanceWeight},
		{"attractorAttractionWeight", c.AttractorAttractionWeight},
		{"attractorAvoidanceWeight", c.AttractorAvoidanceWeight},
		{"velocityBlendFactor", c.VelocityBlendFactor},
		{"minSpeed", c.MinSpeed},
		{"maxSpeed", c.MaxSpeed},
		{"plane.level", c.Plane.Level},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.value)
		}
	}

	switch {
	case c.NearDistance < 0:
		return fmt.Errorf("%w: nearDistance must be >= 0, got %v", ErrInvalidConfig, c.NearDistance)
	case c.CollisionDistance < 0:
		return fmt.Errorf("%w: collisionDistance must be >= 0, got %v", ErrInvalidConfig, c.CollisionDistance)
	case c.AttractorAvoidDistance < 0:
		return fmt.Errorf("%w: attractorAvoidDistance must be >= 0, got %v", ErrInvalidConfig, c.AttractorAvoidDistance)
	case c.VelocityBlendFactor < 0 || c.VelocityBlendFactor > 1:
		return fmt.Errorf("%w: velocityBlendFactor must be in [0,1], got %v", ErrInvalidConfig, c.VelocityBlendFactor)
	case c.MinSpeed < 0:
		return fmt.Errorf("%w: minSpeed must be >= 0, got %v", ErrInvalidConfig, c.MinSpeed)
	case c.MaxSpeed <= 0:
		return fmt.Errorf("%w: maxSpeed must be > 0, got %v", ErrInvalidConfig, c.MaxSpeed)
	case c.MinSpeed > c.MaxSpeed:
		return fmt.Errorf("%w: minSpeed %v is greater than maxSpeed %v", ErrInvalidConfig, c.MinSpeed, c.MaxSpeed)
	case !c.Plane.Normal.Valid():
		return fmt.Errorf("%w: plane normal %v is not an axis", ErrInvalidConfig, c.Plane.Normal)
	}
	return nil
}

// SpawnConfig describes how Initialize scatters a new population.
type SpawnConfig struct {
	Radius float64 `json:"radius" yaml:"radius"` // positions are uniform inside this sphere, then projected
	Speed  float64 `json:"speed" yaml:"speed"`   // initial speed, random direction
}

// DefaultSpawnConfig mirrors the reference spawner.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{Radius: 100, Speed: 10}
}

// Validate checks that radius and speed are finite and non negative.
func (s SpawnConfig) Validate() error {
	if math.IsNaN(s.Radius) || math.IsInf(s.Radius, 0) || s.Radius < 0 {
		return fmt.Errorf("%w: spawn radius must be a finite value >= 0, got %v", ErrInvalidConfig, s.Radius)
	}
	if math.IsNaN(s.Speed) || math.IsInf(s.Speed, 0) || s.Speed < 0 {
		return fmt.Errorf("%w: spawn speed must be a finite value >= 0, got %v", ErrInvalidConfig, s.Speed)
	}
	return nil
}
