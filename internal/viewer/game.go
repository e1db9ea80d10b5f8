// Package viewer draws the flock with ebiten and lets the user retune it live.
package viewer

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/engine"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/viewport"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
)

const (
	boidTip  = 6.0 // pixels from the center to the nose
	boidWing = 5.0
	// vertices per DrawTriangles call must fit uint16 indices
	maxBatch = math.MaxUint16 / 3
)

// Controller is the part of the engine the viewer drives.
type Controller interface {
	Tick(ctx context.Context, dt float64, attractor geometry.Vector3D) error
	UpdateConfig(ctx context.Context, cfg flock.Config) error
	Reset(ctx context.Context) error
	Snapshots() <-chan *engine.Snapshot
}

// Options configures New.
type Options struct {
	Width, Height int
	Scale         float64 // pixels per world unit
	TPS           int
	ShowPanel     bool
	Seed          uint64 // colour palette seed
	Logger        log.Logger
}

// Game implements ebiten.Game.
type Game struct {
	ctx    context.Context
	ctrl   Controller
	logger log.Logger

	vp        viewport.Viewport
	dt        float64
	cfg       flock.Config // bound to the panel widgets
	attractor geometry.Vector3D
	last      *engine.Snapshot

	paused        bool
	showPanel     bool
	showAttractor bool
	follow        bool

	panel  *ui.Panel
	rng    *rand.Rand
	colors []color.RGBA

	white    *ebiten.Image
	vertices []ebiten.Vertex
	indices  []uint16

	// Timing instrumentation
	updateAvg float64 // rolling average in ms
	drawAvg   float64
}

// frame is the user input of one Update.
type frame struct {
	in          ui.Input
	togglePause bool
	togglePanel bool
	reset       bool
}

// New builds the viewer for a running engine whose rules start at cfg.
func New(ctx context.Context, ctrl Controller, cfg flock.Config, opts Options) *Game {
	if opts.TPS < 1 {
		opts.TPS = ebiten.DefaultTPS
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.DiscardLogger
	}
	g := &Game{
		ctx:           ctx,
		ctrl:          ctrl,
		logger:        opts.Logger,
		vp:            viewport.Viewport{Width: opts.Width, Height: opts.Height, Scale: opts.Scale, Plane: cfg.Plane},
		dt:            1 / float64(opts.TPS),
		cfg:           cfg,
		showPanel:     opts.ShowPanel,
		showAttractor: true,
		rng:           rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	g.attractor = cfg.Plane.Project(geometry.Vector3D{})
	g.panel = g.buildPanel()
	return g
}

// sliderRange widens [lo, hi] so the starting value is never clamped.
func sliderRange(lo, hi, v float64) (float64, float64) {
	return math.Min(lo, v), math.Max(hi, v)
}

func (g *Game) buildPanel() *ui.Panel {
	p := ui.NewPanel(10, 10, 260, float64(g.vp.Height)-20, "Flock rules")
	slider := func(label string, lo, hi float64, v *float64) {
		lo, hi = sliderRange(lo, hi, *v)
		s := p.AddSlider(label, lo, hi, v)
		if hi-lo < 1 {
			s.Format = "%.3f"
		}
	}

	p.AddSection("Distances")
	slider("Near distance", 0, 100, &g.cfg.NearDistance)
	slider("Collision distance", 0, 50, &g.cfg.CollisionDistance)
	slider("Attractor avoid distance", 0, 100, &g.cfg.AttractorAvoidDistance)

	p.AddSection("Weights")
	slider("Velocity matching", 0, 0.2, &g.cfg.VelocityMatchingWeight)
	slider("Flock centering", 0, 1, &g.cfg.FlockCenteringWeight)
	slider("Collision avoidance", -2, 0, &g.cfg.CollisionAvoidanceWeight)
	slider("Attractor attraction", 0, 0.1, &g.cfg.AttractorAttractionWeight)
	slider("Attractor avoidance", 0, 2, &g.cfg.AttractorAvoidanceWeight)
	slider("Velocity blend", 0, 1, &g.cfg.VelocityBlendFactor)

	p.AddSection("Speed")
	slider("Min speed", 0, 60, &g.cfg.MinSpeed)
	slider("Max speed", 1, 60, &g.cfg.MaxSpeed)
	p.AddCheckbox("Floor to max speed", &g.cfg.FloorToMaxSpeed)

	p.AddSection("View")
	p.AddCheckbox("Show attractor", &g.showAttractor)
	p.AddCheckbox("Follow flock", &g.follow)
	p.AddButton("Respawn flock", func() {
		if err := g.ctrl.Reset(g.ctx); err != nil {
			g.logger.Errorf("reset failed: %v", err)
		}
	})
	return p
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	return g.step(frame{
		in:          ui.PollInput(),
		togglePause: inpututil.IsKeyJustPressed(ebiten.KeySpace),
		togglePanel: inpututil.IsKeyJustPressed(ebiten.KeyTab),
		reset:       inpututil.IsKeyJustPressed(ebiten.KeyR),
	})
}

// step applies one frame of input, then ticks the engine unless paused.
func (g *Game) step(f frame) error {
	if f.togglePause {
		g.paused = !g.paused
	}
	if f.togglePanel {
		g.showPanel = !g.showPanel
	}
	if f.reset {
		if err := g.ctrl.Reset(g.ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	overPanel := false
	if g.showPanel {
		overPanel = g.panel.Contains(f.in)
		if g.panel.Update(f.in) {
			g.pushConfig()
		}
	}
	if !overPanel {
		g.attractor = g.vp.ScreenToWorld(float64(f.in.X), float64(f.in.Y))
	}

	g.drain()
	if g.paused {
		return nil
	}
	if err := g.ctrl.Tick(g.ctx, g.dt, g.attractor); err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// pushConfig sends the edited rules. A min speed dragged above the max speed
// is pulled back down first.
func (g *Game) pushConfig() {
	if g.cfg.MinSpeed > g.cfg.MaxSpeed {
		g.cfg.MinSpeed = g.cfg.MaxSpeed
	}
	if err := g.ctrl.UpdateConfig(g.ctx, g.cfg); err != nil {
		g.logger.Warnf("config not applied: %v", err)
	}
}

// drain keeps the newest snapshot available without blocking.
func (g *Game) drain() {
	for {
		select {
		case snap := <-g.ctrl.Snapshots():
			g.last = snap
			if n := len(snap.Agents); n > len(g.colors) {
				g.colors = append(g.colors, viewport.Palette(g.rng, n-len(g.colors))...)
			}
		default:
			if g.follow && g.last != nil {
				s := g.last.Stats
				g.vp.Center = geometry.Vector3D{X: s.CentroidX, Y: s.CentroidY, Z: s.CentroidZ}
			}
			return
		}
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	screen.Fill(color.RGBA{R: 10, G: 10, B: 30, A: 255})
	if g.white == nil {
		g.white = ebiten.NewImage(3, 3)
		g.white.Fill(color.White)
	}

	if g.last != nil {
		g.drawFlock(screen, g.last.Agents)
	}
	if g.showAttractor {
		x, y := g.vp.WorldToScreen(g.attractor)
		avoid := float32(g.cfg.AttractorAvoidDistance * g.vp.Scale)
		vector.StrokeCircle(screen, float32(x), float32(y), avoid, 1, color.RGBA{R: 255, G: 80, B: 80, A: 120}, true)
		vector.FillCircle(screen, float32(x), float32(y), 3, color.RGBA{R: 255, G: 80, B: 80, A: 255}, true)
	}
	if g.showPanel {
		g.panel.Draw(screen)
	}
	ebitenutil.DebugPrintAt(screen, g.statsText(), g.vp.Width-200, 10)
}

// drawFlock draws every boid as a triangle pointing along its heading,
// batching as many as the index type allows per call.
func (g *Game) drawFlock(screen *ebiten.Image, agents []flock.AgentState) {
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	for i, a := range agents {
		if !g.vp.Visible(a.Position, boidTip) {
			continue
		}
		clr := color.RGBA{R: 100, G: 200, B: 255, A: 255}
		if i < len(g.colors) {
			clr = g.colors[i]
		}
		base := uint16(len(g.vertices))
		g.vertices = append(g.vertices, boidTriangle(g.vp, a, clr)...)
		g.indices = append(g.indices, base, base+1, base+2)
		if len(g.vertices) >= maxBatch*3 {
			g.flush(screen)
		}
	}
	g.flush(screen)
}

func (g *Game) flush(screen *ebiten.Image) {
	if len(g.indices) == 0 {
		return
	}
	screen.DrawTriangles(g.vertices, g.indices, g.white, &ebiten.DrawTrianglesOptions{})
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
}

// boidTriangle returns the nose, right wing and left wing of a boid.
func boidTriangle(vp viewport.Viewport, a flock.AgentState, clr color.RGBA) []ebiten.Vertex {
	x, y := vp.WorldToScreen(a.Position)
	angle := vp.ScreenAngle(a.Heading)
	r, gr, b, al := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255, float32(clr.A)/255
	vertex := func(dist, da float64) ebiten.Vertex {
		return ebiten.Vertex{
			DstX:   float32(x + math.Cos(angle+da)*dist),
			DstY:   float32(y + math.Sin(angle+da)*dist),
			SrcX:   1,
			SrcY:   1,
			ColorR: r, ColorG: gr, ColorB: b, ColorA: al,
		}
	}
	return []ebiten.Vertex{vertex(boidTip, 0), vertex(boidWing, 2.5), vertex(boidWing, -2.5)}
}

func (g *Game) statsText() string {
	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\nUpdate: %.2fms\nDraw:   %.2fms\n",
		ebiten.ActualFPS(), ebiten.ActualTPS(), g.updateAvg, g.drawAvg)
	if g.last != nil {
		s := g.last.Stats
		msg += fmt.Sprintf("\nStep:  %d\nTime:  %.1fs\nBoids: %d\nSpeed: %.2f\nPolar: %.2f\nNbrs:  %.1f\n",
			s.Step, s.SimTime, s.Agents, s.MeanSpeed, s.Polarization, s.MeanNeighbors)
	}
	if g.paused {
		msg += "\nPAUSED (space)"
	}
	return msg
}

func (g *Game) Layout(w, h int) (int, int) { return g.vp.Width, g.vp.Height }
