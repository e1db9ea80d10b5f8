package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const (
	titleHeight   = 30.0
	sectionHeight = 25.0
	scrollStep    = 20.0
)

// Widget is anything the panel can stack vertically.
type Widget interface {
	// Update handles one frame of input and reports whether a bound value changed.
	Update(in Input) bool
	Draw(screen *ebiten.Image)
	Height() float64
	setY(y float64)
}

// row is either a section header or a widget.
type row struct {
	title  string
	widget Widget
}

func (r row) height() float64 {
	if r.widget == nil {
		return sectionHeight
	}
	return r.widget.Height()
}

// Panel is a scrollable column of sections and widgets.
type Panel struct {
	X, Y          float64
	Width, Height float64
	Title         string
	ScrollOffset  float64

	BGColor      color.RGBA
	BorderColor  color.RGBA
	SectionColor color.RGBA

	rows []row
}

// NewPanel creates an empty panel.
func NewPanel(x, y, width, height float64, title string) *Panel {
	return &Panel{
		X:            x,
		Y:            y,
		Width:        width,
		Height:       height,
		Title:        title,
		BGColor:      color.RGBA{R: 40, G: 40, B: 45, A: 230},
		BorderColor:  color.RGBA{R: 100, G: 100, B: 110, A: 255},
		SectionColor: color.RGBA{R: 60, G: 60, B: 70, A: 255},
	}
}

// AddSection starts a new titled group.
func (p *Panel) AddSection(title string) {
	p.rows = append(p.rows, row{title: title})
}

// AddSlider appends a slider bound to value.
func (p *Panel) AddSlider(label string, min, max float64, value *float64) *Slider {
	s := NewSlider(p.X+10, 0, p.Width-20, label, min, max, value)
	p.add(s)
	return s
}

// AddCheckbox appends a checkbox bound to value.
func (p *Panel) AddCheckbox(label string, value *bool) *Checkbox {
	c := NewCheckbox(p.X+10, 0, label, value)
	p.add(c)
	return c
}

// AddButton appends a full width button.
func (p *Panel) AddButton(label string, onClick func()) *Button {
	b := NewButton(p.X+10, 0, p.Width-20, 20, label, onClick)
	p.add(b)
	return b
}

func (p *Panel) add(w Widget) {
	p.rows = append(p.rows, row{widget: w})
	p.layout()
}

// layout places every widget for the current scroll offset.
func (p *Panel) layout() {
	y := p.Y + titleHeight - p.ScrollOffset
	for _, r := range p.rows {
		if r.widget != nil {
			r.widget.setY(y)
		}
		y += r.height()
	}
}

// ContentHeight is the unscrolled height of the title and every row.
func (p *Panel) ContentHeight() float64 {
	h := titleHeight
	for _, r := range p.rows {
		h += r.height()
	}
	return h
}

// MaxScroll is the largest allowed ScrollOffset.
func (p *Panel) MaxScroll() float64 {
	return max(0, p.ContentHeight()-p.Height+40)
}

// Contains reports whether the cursor is over the panel.
func (p *Panel) Contains(in Input) bool {
	return in.Over(p.X, p.Y, p.Width, p.Height)
}

// Update scrolls the panel when the wheel turns over it, then feeds the input
// to the visible widgets. It reports whether any bound value changed.
func (p *Panel) Update(in Input) bool {
	if in.Wheel != 0 && p.Contains(in) {
		p.ScrollOffset -= in.Wheel * scrollStep
		p.ScrollOffset = min(max(p.ScrollOffset, 0), p.MaxScroll())
	}
	p.layout()

	inside := p.Contains(in)
	changed := false
	for _, r := range p.rows {
		if r.widget == nil {
			continue
		}
		wIn := in
		// clicks outside the panel never reach scrolled out widgets
		if !inside {
			wIn.Pressed = false
		}
		if r.widget.Update(wIn) {
			changed = true
		}
	}
	return changed
}

// Draw renders the panel, clipping rows scrolled outside of it.
func (p *Panel) Draw(screen *ebiten.Image) {
	vector.FillRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		p.BGColor, true)
	vector.StrokeRect(screen,
		float32(p.X), float32(p.Y),
		float32(p.Width), float32(p.Height),
		2, p.BorderColor, true)

	p.layout()
	y := p.Y + titleHeight - p.ScrollOffset
	for _, r := range p.rows {
		h := r.height()
		if y >= p.Y+titleHeight-5 && y+h <= p.Y+p.Height {
			if r.widget == nil {
				vector.FillRect(screen,
					float32(p.X+5), float32(y),
					float32(p.Width-10), 20,
					p.SectionColor, true)
				ebitenutil.DebugPrintAt(screen, r.title, int(p.X+10), int(y+3))
			} else {
				r.widget.Draw(screen)
			}
		}
		y += h
	}
	ebitenutil.DebugPrintAt(screen, p.Title, int(p.X+10), int(p.Y+5))
}
