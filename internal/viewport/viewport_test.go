package viewport

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func TestViewport_WorldToScreen(t *testing.T) {
	v := Viewport{Width: 800, Height: 600, Scale: 2, Plane: geometry.XZ}

	tests := []struct {
		name  string
		world geometry.Vector3D
		x, y  float64
	}{
		{"origin is centered", geometry.Vector3D{}, 400, 300},
		{"+X goes right", geometry.Vector3D{X: 10}, 420, 300},
		{"+Z goes up", geometry.Vector3D{Z: 10}, 400, 280},
		{"height is ignored", geometry.Vector3D{X: -5, Y: 99, Z: -5}, 390, 310},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := v.WorldToScreen(tt.world)
			assert.InDelta(t, tt.x, x, 1e-9)
			assert.InDelta(t, tt.y, y, 1e-9)
		})
	}
}

func TestViewport_RoundTrip(t *testing.T) {
	v := Viewport{
		Width: 1000, Height: 800, Scale: 2.5,
		Plane:  geometry.Plane{Normal: geometry.AxisY, Level: 3},
		Center: geometry.Vector3D{X: 12, Z: -7},
	}
	for _, px := range [][2]float64{{0, 0}, {500, 400}, {999, 1}, {123.5, 654.25}} {
		p := v.ScreenToWorld(px[0], px[1])
		assert.Equal(t, 3.0, p.Y, "cursor point must lie on the plane")
		x, y := v.WorldToScreen(p)
		assert.InDelta(t, px[0], x, 1e-9)
		assert.InDelta(t, px[1], y, 1e-9)
	}
	center := v.ScreenToWorld(500, 400)
	assert.InDelta(t, 12, center.X, 1e-9)
	assert.InDelta(t, -7, center.Z, 1e-9)
}

func TestViewport_ScreenAngle(t *testing.T) {
	v := Viewport{Width: 10, Height: 10, Scale: 1, Plane: geometry.XZ}
	assert.InDelta(t, 0, v.ScreenAngle(geometry.Vector3D{X: 1}), 1e-12)
	assert.InDelta(t, -math.Pi/2, v.ScreenAngle(geometry.Vector3D{Z: 1}), 1e-12)
	assert.InDelta(t, math.Pi/2, v.ScreenAngle(geometry.Vector3D{Z: -1}), 1e-12)
}

func TestViewport_Visible(t *testing.T) {
	v := Viewport{Width: 100, Height: 100, Scale: 1, Plane: geometry.XZ}
	assert.True(t, v.Visible(geometry.Vector3D{}, 0))
	assert.False(t, v.Visible(geometry.Vector3D{X: 60}, 0))
	assert.True(t, v.Visible(geometry.Vector3D{X: 60}, 20))
}

func TestRandomColor_NotTooDark(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		c := RandomColor(rng)
		sum := int(c.R) + int(c.G) + int(c.B)
		// truncation to uint8 loses at most one unit per channel
		assert.GreaterOrEqual(t, sum, 255-3)
		assert.Equal(t, uint8(255), c.A)
	}
	assert.Len(t, Palette(rng, 7), 7)
}
