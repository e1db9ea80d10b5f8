package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Button runs OnClick once per press.
type Button struct {
	Label   string
	X, Y    float64
	W, H    float64
	clicked bool
	hover   bool
	OnClick func()

	BGColor    color.RGBA
	HoverColor color.RGBA
}

// NewButton creates a button of the given size.
func NewButton(x, y, width, height float64, label string, onClick func()) *Button {
	return &Button{
		Label:      label,
		X:          x,
		Y:          y,
		W:          width,
		H:          height,
		OnClick:    onClick,
		BGColor:    color.RGBA{R: 80, G: 120, B: 180, A: 255},
		HoverColor: color.RGBA{R: 100, G: 150, B: 220, A: 255},
	}
}

// Update fires OnClick on the first frame of a press over the button. It
// never reports a value change.
func (b *Button) Update(in Input) bool {
	b.hover = in.Over(b.X, b.Y, b.W, b.H)
	if b.hover && in.Pressed {
		if !b.clicked && b.OnClick != nil {
			b.OnClick()
		}
		b.clicked = true
	} else {
		b.clicked = false
	}
	return false
}

func (b *Button) Draw(screen *ebiten.Image) {
	bgColor := b.BGColor
	if b.hover {
		bgColor = b.HoverColor
	}
	vector.FillRect(screen,
		float32(b.X), float32(b.Y),
		float32(b.W), float32(b.H),
		bgColor, true)
	vector.StrokeRect(screen,
		float32(b.X), float32(b.Y),
		float32(b.W), float32(b.H),
		2, color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
	ebitenutil.DebugPrintAt(screen, b.Label, int(b.X+8), int(b.Y+(b.H-16)/2))
}

func (b *Button) Height() float64 { return b.H + 5 }

func (b *Button) setY(y float64) { b.Y = y }
