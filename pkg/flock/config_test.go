package flock

import (
	"errors"
	"math"
	"testing"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v; want nil", err)
	}
	if err := DefaultSpawnConfig().Validate(); err != nil {
		t.Fatalf("DefaultSpawnConfig().Validate() = %v; want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative near distance", func(c *Config) { c.NearDistance = -1 }},
		{"negative collision distance", func(c *Config) { c.CollisionDistance = -0.1 }},
		{"negative avoid distance", func(c *Config) { c.AttractorAvoidDistance = -15 }},
		{"min greater than max", func(c *Config) { c.MinSpeed, c.MaxSpeed = 10, 5 }},
		{"negative min speed", func(c *Config) { c.MinSpeed = -1 }},
		{"zero max speed", func(c *Config) { c.MaxSpeed = 0 }},
		{"blend above one", func(c *Config) { c.VelocityBlendFactor = 1.5 }},
		{"blend below zero", func(c *Config) { c.VelocityBlendFactor = -0.1 }},
		{"NaN weight", func(c *Config) { c.FlockCenteringWeight = math.NaN() }},
		{"Inf weight", func(c *Config) { c.AttractorAttractionWeight = math.Inf(1) }},
		{"Inf plane level", func(c *Config) { c.Plane.Level = math.Inf(-1) }},
		{"bad plane axis", func(c *Config) { c.Plane.Normal = geometry.Axis(5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v; want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_ValidateAcceptsEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSpeed, cfg.MaxSpeed = 30, 30
	cfg.VelocityBlendFactor = 1
	cfg.NearDistance, cfg.CollisionDistance, cfg.AttractorAvoidDistance = 0, 0, 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v; want nil for boundary values", err)
	}
}

func TestSpawnConfig_Validate(t *testing.T) {
	tests := []struct {
		name  string
		spawn SpawnConfig
		ok    bool
	}{
		{"default", DefaultSpawnConfig(), true},
		{"zero", SpawnConfig{}, true},
		{"negative radius", SpawnConfig{Radius: -1, Speed: 1}, false},
		{"negative speed", SpawnConfig{Radius: 1, Speed: -1}, false},
		{"NaN radius", SpawnConfig{Radius: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spawn.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v; want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v; want ErrInvalidConfig", err)
			}
		})
	}
}
