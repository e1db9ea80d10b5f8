package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/engine"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/observability"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/settings"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/viewer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "boids:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	headless    bool
	steps       int
	dt          float64
	seed        uint64
	population  int
	metricsAddr string
	outputDir   string
	logLevel    string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("boids", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "settings file (.yaml, .yml or .json)")
	fs.BoolVar(&o.headless, "headless", false, "run without a window")
	fs.IntVar(&o.steps, "steps", 1000, "steps to run in headless mode")
	fs.Float64Var(&o.dt, "dt", 1.0/60, "step duration in seconds in headless mode")
	fs.Uint64Var(&o.seed, "seed", 0, "random seed, overrides the settings file when non zero")
	fs.IntVar(&o.population, "population", 0, "number of boids, overrides the settings file when non zero")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics, overrides the settings file")
	fs.StringVar(&o.outputDir, "output-dir", "", "directory for flock.csv and the effective settings, overrides the settings file")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error, overrides the settings file")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.steps < 0 {
		return o, fmt.Errorf("-steps must be >= 0, got %d", o.steps)
	}
	if o.dt < 0 {
		return o, fmt.Errorf("-dt must be >= 0, got %v", o.dt)
	}
	return o, nil
}

// loadSettings reads the settings file and applies the command line overrides.
func loadSettings(o options) (*settings.Settings, error) {
	s, err := settings.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.seed != 0 {
		s.Seed = o.seed
	}
	if o.population != 0 {
		s.Population = o.population
	}
	if o.metricsAddr != "" {
		s.Metrics.Addr = o.metricsAddr
	}
	if o.outputDir != "" {
		s.Telemetry.OutputDir = o.outputDir
	}
	if o.logLevel != "" {
		s.LogLevel = o.logLevel
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	s, err := loadSettings(o)
	if err != nil {
		return err
	}
	logger := log.New(s.Level(), stdout)

	tracingCfg := observability.TracingConfig{
		Enabled:     s.Tracing.Enabled,
		ServiceName: s.Tracing.ServiceName,
		Exporter:    s.Tracing.Exporter,
		Endpoint:    s.Tracing.Endpoint,
		SampleRatio: s.Tracing.SampleRatio,
		Writer:      stdout,
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewStepCollector(registry)
	if err != nil {
		return fmt.Errorf("failed to initialise metrics: %w", err)
	}
	metricsSrv := serveMetrics(s.Metrics.Addr, metrics, logger)

	recorder, err := telemetry.NewRecorder(s.Telemetry.OutputDir, s.Telemetry.Every)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Errorf("closing telemetry: %v", err)
		}
	}()
	if recorder != nil {
		if err := s.WriteYAML(filepath.Join(recorder.Dir(), "settings.yaml")); err != nil {
			return err
		}
		logger.Infof("recording run %s into %s", recorder.RunID(), recorder.Dir())
	}

	eng, err := engine.Start(ctx, engine.Options{
		Population:     s.Population,
		Seed:           s.Seed,
		Workers:        s.Workers,
		Spawn:          s.Spawn,
		Flock:          s.Flock,
		Logger:         logger,
		Metrics:        metrics,
		Recorder:       recorder,
		SnapshotBuffer: 2,
	})
	if err != nil {
		return err
	}

	if o.headless {
		err = runHeadless(ctx, eng, o.steps, o.dt, logger)
	} else {
		err = runWindow(ctx, eng, s, logger)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := eng.Stop(stopCtx); stopErr != nil {
		logger.Errorf("stopping engine: %v", stopErr)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(stopCtx)
	}
	return err
}

// runHeadless steps the flock towards a fixed attractor at the origin of
// the motion plane and logs the final status.
func runHeadless(ctx context.Context, eng *engine.Engine, steps int, dt float64, logger log.Logger) error {
	st, err := eng.State(ctx)
	if err != nil {
		return err
	}
	attractor := st.Config.Plane.Point(0, 0)
	start := time.Now()
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			logger.Warnf("interrupted after %d steps", i)
			break
		}
		if err := eng.Tick(ctx, dt, attractor); err != nil {
			return err
		}
	}
	st, err = eng.State(ctx)
	if err != nil {
		return err
	}
	logger.Infof("%d steps in %s: %d agents, mean speed %.3f, mean neighbors %.2f, sim time %.2fs",
		st.Steps, time.Since(start).Round(time.Millisecond), st.Agents, st.MeanSpeed, st.MeanNeighbors, st.SimTime)
	return nil
}

func runWindow(ctx context.Context, eng *engine.Engine, s *settings.Settings, logger log.Logger) error {
	game := viewer.New(ctx, eng, s.Flock, viewer.Options{
		Width:     s.Viewer.Width,
		Height:    s.Viewer.Height,
		Scale:     s.Viewer.Scale,
		TPS:       s.Viewer.TPS,
		ShowPanel: s.Viewer.ShowPanel,
		Seed:      s.Seed,
		Logger:    logger,
	})
	ebiten.SetWindowSize(s.Viewer.Width, s.Viewer.Height)
	ebiten.SetWindowTitle("Boids")
	ebiten.SetTPS(s.Viewer.TPS)
	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

func serveMetrics(addr string, metrics *observability.StepCollector, logger log.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("metrics server exited: %v", err)
		}
	}()
	logger.Infof("serving Prometheus metrics on %s", addr)
	return srv
}
