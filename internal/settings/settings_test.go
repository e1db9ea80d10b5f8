package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 100, s.Population)
	assert.Equal(t, flock.DefaultConfig(), s.Flock)
	assert.Equal(t, flock.DefaultSpawnConfig(), s.Spawn)
	assert.Equal(t, log.InfoLevel, s.Level())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "run.yaml", `
population: 250
seed: 42
logLevel: debug
flock:
  nearDistance: 40
  minSpeed: 2
  plane:
    normal: z
    level: 1.5
telemetry:
  outputDir: out
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 250, s.Population)
	assert.Equal(t, uint64(42), s.Seed)
	assert.Equal(t, log.DebugLevel, s.Level())
	assert.Equal(t, 40.0, s.Flock.NearDistance)
	assert.Equal(t, 2.0, s.Flock.MinSpeed)
	assert.Equal(t, geometry.Plane{Normal: geometry.AxisZ, Level: 1.5}, s.Flock.Plane)
	assert.Equal(t, "out", s.Telemetry.OutputDir)

	// untouched keys keep their defaults
	assert.Equal(t, flock.DefaultConfig().CollisionDistance, s.Flock.CollisionDistance)
	assert.Equal(t, flock.DefaultConfig().MaxSpeed, s.Flock.MaxSpeed)
	assert.Equal(t, 10, s.Telemetry.Every)
	assert.Equal(t, Default().Viewer, s.Viewer)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "run.json", `{
  "population": 12,
  "flock": {"velocityBlendFactor": 0.5, "floorToMaxSpeed": true},
  "tracing": {"enabled": true, "exporter": "otlp", "endpoint": "localhost:4317"}
}`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, s.Population)
	assert.Equal(t, 0.5, s.Flock.VelocityBlendFactor)
	assert.True(t, s.Flock.FloorToMaxSpeed)
	assert.True(t, s.Tracing.Enabled)
	assert.Equal(t, "otlp", s.Tracing.Exporter)
	assert.Equal(t, "go-flock-simulation", s.Tracing.ServiceName)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "a.yaml", "populaton: 3\n"},
		{"negative population", "b.json", `{"population": -1}`},
		{"blend out of range", "c.yaml", "flock:\n  velocityBlendFactor: 2\n"},
		{"unknown axis", "d.yaml", "flock:\n  plane:\n    normal: w\n"},
		{"bad log level", "e.json", `{"logLevel": "loud"}`},
		{"min above max", "f.yaml", "flock:\n  minSpeed: 50\n  maxSpeed: 10\n"},
		{"malformed yaml", "g.yml", "flock: [\n"},
		{"malformed json", "h.json", `{"population": `},
		{"unsupported extension", "i.toml", "population = 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_SemanticErrorIsWrapped(t *testing.T) {
	_, err := Load(writeFile(t, "run.yaml", "flock:\n  minSpeed: 50\n  maxSpeed: 10\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.ErrorIs(t, err, flock.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	s := Default()
	s.Population = 64
	s.Seed = 7
	s.Flock.Plane = geometry.Plane{Normal: geometry.AxisX, Level: -3}
	s.Tracing.Enabled = true

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, s.WriteYAML(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"":        log.InfoLevel,
		"warn":    log.WarningLevel,
		"warning": log.WarningLevel,
		"error":   log.ErrorLevel,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("trace")
	assert.Error(t, err)
}
