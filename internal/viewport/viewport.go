// Package viewport maps the motion plane to the screen and back, and picks
// boid colours.
package viewport

import (
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Viewport is a top-down orthographic view of the motion plane. The first
// plane axis points right, the second points up, and Center is drawn in the
// middle of the screen.
type Viewport struct {
	Width, Height int
	Scale         float64 // pixels per world unit
	Plane         geometry.Plane
	Center        geometry.Vector3D
}

// WorldToScreen returns the pixel position of p.
func (v Viewport) WorldToScreen(p geometry.Vector3D) (float64, float64) {
	a, b := v.Plane.Coords(p)
	ca, cb := v.Plane.Coords(v.Center)
	x := float64(v.Width)/2 + (a-ca)*v.Scale
	y := float64(v.Height)/2 - (b-cb)*v.Scale
	return x, y
}

// ScreenToWorld returns the point of the plane under pixel (x, y), used to
// turn the cursor into the attractor.
func (v Viewport) ScreenToWorld(x, y float64) geometry.Vector3D {
	ca, cb := v.Plane.Coords(v.Center)
	a := ca + (x-float64(v.Width)/2)/v.Scale
	b := cb - (y-float64(v.Height)/2)/v.Scale
	return v.Plane.Point(a, b)
}

// ScreenAngle returns the screen rotation (radians, clockwise from +x since
// screen y grows downwards) of an in-plane direction.
func (v Viewport) ScreenAngle(dir geometry.Vector3D) float64 {
	a, b := v.Plane.Coords(dir)
	return math.Atan2(-b, a)
}

// Visible reports whether p falls on screen, with margin pixels of slack.
func (v Viewport) Visible(p geometry.Vector3D, margin float64) bool {
	x, y := v.WorldToScreen(p)
	return x >= -margin && y >= -margin && x <= float64(v.Width)+margin && y <= float64(v.Height)+margin
}

// RandomColor returns a random opaque colour whose channels add up to at
// least one, so no boid is drawn too dark against the background.
func RandomColor(rng *rand.Rand) color.RGBA {
	for {
		r, g, b := rng.Float64(), rng.Float64(), rng.Float64()
		if r+g+b >= 1 {
			return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
		}
	}
}

// Palette returns n colours drawn with RandomColor.
func Palette(rng *rand.Rand, n int) []color.RGBA {
	colors := make([]color.RGBA, n)
	for i := range colors {
		colors[i] = RandomColor(rng)
	}
	return colors
}
