// Package settings loads the run settings of the flock simulation from a JSON
// or YAML document validated against an embedded JSON schema.
package settings

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tochemey/goakt/v3/log"
	"gopkg.in/yaml.v3"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

//go:embed settings.schema.json
var schemaJSON string

const schemaURL = "settings.schema.json"

// ErrInvalidSettings wraps every semantic validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the whole run configuration.
type Settings struct {
	Population int    `json:"population" yaml:"population"`
	Seed       uint64 `json:"seed" yaml:"seed"`       // 0 picks a random seed
	Workers    int    `json:"workers" yaml:"workers"` // 0 uses GOMAXPROCS
	LogLevel   string `json:"logLevel" yaml:"logLevel"`

	Flock flock.Config      `json:"flock" yaml:"flock"`
	Spawn flock.SpawnConfig `json:"spawn" yaml:"spawn"`

	Viewer    Viewer    `json:"viewer" yaml:"viewer"`
	Telemetry Telemetry `json:"telemetry" yaml:"telemetry"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
	Tracing   Tracing   `json:"tracing" yaml:"tracing"`
}

// Viewer holds the window settings of the interactive mode.
type Viewer struct {
	Width     int     `json:"width" yaml:"width"`
	Height    int     `json:"height" yaml:"height"`
	Scale     float64 `json:"scale" yaml:"scale"` // pixels per world unit
	TPS       int     `json:"tps" yaml:"tps"`
	ShowPanel bool    `json:"showPanel" yaml:"showPanel"`
}

// Telemetry controls the CSV output. An empty OutputDir disables it.
type Telemetry struct {
	OutputDir string `json:"outputDir" yaml:"outputDir"`
	Every     int    `json:"every" yaml:"every"`
}

// Metrics controls the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Tracing controls the OpenTelemetry exporter.
type Tracing struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"` // stdout or otlp
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"serviceName" yaml:"serviceName"`
	SampleRatio float64 `json:"sampleRatio" yaml:"sampleRatio"`
}

// Default returns the settings used when no file is given.
func Default() *Settings {
	return &Settings{
		Population: 100,
		LogLevel:   "info",
		Flock:      flock.DefaultConfig(),
		Spawn:      flock.DefaultSpawnConfig(),
		Viewer: Viewer{
			Width:     1000,
			Height:    800,
			Scale:     2.5,
			TPS:       60,
			ShowPanel: true,
		},
		Telemetry: Telemetry{Every: 10},
		Tracing: Tracing{
			Exporter:    "stdout",
			ServiceName: "go-flock-simulation",
			SampleRatio: 1,
		},
	}
}

// Load reads a .json, .yaml or .yml settings file, validates it against the
// embedded schema and overlays it on Default. Keys missing from the file keep
// their default value. An empty path returns Default.
func Load(path string) (*Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var doc []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		doc = raw
	case ".yaml", ".yml":
		doc, err = yamlToJSON(raw)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported settings format %q", ext)
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode settings yaml: %w", err)
	}
	if v == nil {
		v = map[string]interface{}{}
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert settings yaml: %w", err)
	}
	return doc, nil
}

func validateSchema(doc []byte) error {
	sch, err := jsonschema.CompileString(schemaURL, schemaJSON)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	var v interface{}
	if err := json.NewDecoder(bytes.NewReader(doc)).Decode(&v); err != nil {
		return fmt.Errorf("failed to decode settings json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

// Validate checks what the schema cannot express, mainly the flock rules.
func (s *Settings) Validate() error {
	if s.Population < 0 {
		return fmt.Errorf("%w: population must be >= 0, got %d", ErrInvalidSettings, s.Population)
	}
	if s.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidSettings, s.Workers)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Flock.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if err := s.Spawn.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.Viewer.Width <= 0 || s.Viewer.Height <= 0 || s.Viewer.Scale <= 0 || s.Viewer.TPS <= 0 {
		return fmt.Errorf("%w: viewer width, height, scale and tps must be > 0", ErrInvalidSettings)
	}
	if s.Telemetry.Every < 1 {
		return fmt.Errorf("%w: telemetry.every must be >= 1, got %d", ErrInvalidSettings, s.Telemetry.Every)
	}
	if s.Tracing.Enabled && s.Tracing.Exporter != "stdout" && s.Tracing.Exporter != "otlp" {
		return fmt.Errorf("%w: unknown tracing exporter %q", ErrInvalidSettings, s.Tracing.Exporter)
	}
	return nil
}

// Level returns the goakt log level named by LogLevel.
func (s *Settings) Level() log.Level {
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ParseLevel maps debug, info, warn and error to goakt log levels.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarningLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InvalidLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// WriteYAML saves the effective settings, typically next to the telemetry output.
func (s *Settings) WriteYAML(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}
