package ui

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Slider edits a float64 owned by the caller.
type Slider struct {
	Label    string
	Value    *float64
	Min, Max float64
	X, Y     float64
	W, H     float64
	Format   string // fmt verb used to print the value, "%.2f" by default
}

// NewSlider binds a slider to value. The current value is clamped into [min, max].
func NewSlider(x, y, w float64, label string, min, max float64, value *float64) *Slider {
	s := &Slider{
		Label:  label,
		Value:  value,
		Min:    min,
		Max:    max,
		X:      x,
		Y:      y,
		W:      w,
		H:      10,
		Format: "%.2f",
	}
	*value = s.clamp(*value)
	return s
}

func (s *Slider) clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// ValueAt maps a horizontal pixel position to a value in [Min, Max].
func (s *Slider) ValueAt(x float64) float64 {
	if s.W <= 0 {
		return s.Min
	}
	p := (x - s.X) / s.W
	return s.clamp(s.Min + p*(s.Max-s.Min))
}

// Ratio is the filled fraction of the bar.
func (s *Slider) Ratio() float64 {
	if s.Max == s.Min {
		return 0
	}
	return (*s.Value - s.Min) / (s.Max - s.Min)
}

// Update drags the value while the button is held over the bar and reports
// whether it changed.
func (s *Slider) Update(in Input) bool {
	if !in.Pressed || !in.Over(s.X, s.Y, s.W, s.H) {
		return false
	}
	v := s.ValueAt(float64(in.X))
	if v == *s.Value {
		return false
	}
	*s.Value = v
	return true
}

func (s *Slider) Draw(screen *ebiten.Image) {
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W), float32(s.H), color.RGBA{R: 80, G: 80, B: 80, A: 255}, true)
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W*s.Ratio()), float32(s.H), color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
	ebitenutil.DebugPrintAt(screen, s.Text(), int(s.X), int(s.Y-15))
}

// Text is the label followed by the formatted value.
func (s *Slider) Text() string {
	return fmt.Sprintf("%s: "+s.Format, s.Label, *s.Value)
}

func (s *Slider) Height() float64 { return s.H + 25 }

func (s *Slider) setY(y float64) { s.Y = y + 15 }
