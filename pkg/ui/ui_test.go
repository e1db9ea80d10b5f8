package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlider_ValueAt(t *testing.T) {
	v := 0.0
	s := NewSlider(10, 0, 100, "speed", 0, 50, &v)

	assert.Equal(t, 0.0, s.ValueAt(10))
	assert.Equal(t, 25.0, s.ValueAt(60))
	assert.Equal(t, 50.0, s.ValueAt(110))
	assert.Equal(t, 0.0, s.ValueAt(-500), "clamped below")
	assert.Equal(t, 50.0, s.ValueAt(500), "clamped above")
}

func TestNewSlider_ClampsBoundValue(t *testing.T) {
	v := 80.0
	s := NewSlider(0, 0, 100, "near", 0, 60, &v)
	assert.Equal(t, 60.0, v)
	assert.Equal(t, 1.0, s.Ratio())
	assert.Equal(t, "near: 60.00", s.Text())
}

func TestSlider_Update(t *testing.T) {
	v := 1.0
	s := NewSlider(0, 100, 200, "w", -1, 1, &v)

	assert.False(t, s.Update(Input{X: 150, Y: 105}), "hover without press")
	assert.Equal(t, 1.0, v)

	assert.True(t, s.Update(Input{X: 50, Y: 105, Pressed: true}))
	assert.Equal(t, -0.5, v)

	assert.False(t, s.Update(Input{X: 50, Y: 105, Pressed: true}), "same value is not a change")
	assert.False(t, s.Update(Input{X: 50, Y: 300, Pressed: true}), "press outside the bar")
	assert.Equal(t, -0.5, v)
}

func TestCheckbox_TogglesOncePerPress(t *testing.T) {
	on := false
	c := NewCheckbox(0, 0, "floor", &on)
	press := Input{X: 5, Y: 5, Pressed: true}

	assert.True(t, c.Update(press))
	assert.True(t, on)
	assert.False(t, c.Update(press), "held button")
	assert.True(t, on)

	assert.False(t, c.Update(Input{X: 5, Y: 5}))
	assert.True(t, c.Update(press))
	assert.False(t, on)
}

func TestButton_ClicksOncePerPress(t *testing.T) {
	clicks := 0
	b := NewButton(0, 0, 50, 20, "reset", func() { clicks++ })
	press := Input{X: 10, Y: 10, Pressed: true}

	assert.False(t, b.Update(press))
	b.Update(press)
	assert.Equal(t, 1, clicks)

	b.Update(Input{X: 10, Y: 10})
	b.Update(press)
	assert.Equal(t, 2, clicks)

	b.Update(Input{X: 100, Y: 10, Pressed: true})
	assert.Equal(t, 2, clicks)
}

func TestPanel_LayoutAndScroll(t *testing.T) {
	p := NewPanel(0, 0, 200, 120, "Configuration")
	a, b := 0.0, 0.0
	on := false

	p.AddSection("Distances")
	sa := p.AddSlider("near", 0, 100, &a)
	sb := p.AddSlider("collision", 0, 100, &b)
	p.AddSection("Speed")
	cb := p.AddCheckbox("floor to max", &on)

	// title, header, then 35 pixel slider rows with the bar 15 pixels under the label
	assert.Equal(t, titleHeight+sectionHeight+15, sa.Y)
	assert.Equal(t, sa.Y+sa.Height(), sb.Y)
	assert.Equal(t, titleHeight+2*sectionHeight+2*sa.Height(), cb.Y)

	content := titleHeight + 2*sectionHeight + 2*sa.Height() + cb.Height()
	require.Equal(t, content, p.ContentHeight())
	assert.Equal(t, content-120+40, p.MaxScroll())

	// wheel down past the end clamps
	p.Update(Input{X: 10, Y: 10, Wheel: -100})
	assert.Equal(t, p.MaxScroll(), p.ScrollOffset)
	assert.Equal(t, titleHeight+sectionHeight+15-p.MaxScroll(), sa.Y)

	p.Update(Input{X: 10, Y: 10, Wheel: 100})
	assert.Equal(t, 0.0, p.ScrollOffset)

	// wheel outside the panel is ignored
	p.Update(Input{X: 500, Y: 10, Wheel: -1})
	assert.Equal(t, 0.0, p.ScrollOffset)
}

func TestPanel_UpdateReportsChanges(t *testing.T) {
	p := NewPanel(0, 0, 220, 400, "Configuration")
	v := 0.0
	s := p.AddSlider("weight", 0, 10, &v)
	clicked := false
	p.AddButton("reset", func() { clicked = true })

	assert.False(t, p.Update(Input{X: 100, Y: int(s.Y) + 2}))
	assert.True(t, p.Update(Input{X: 110, Y: int(s.Y) + 2, Pressed: true}))
	assert.InDelta(t, 5.0, v, 1e-9)

	assert.False(t, p.Update(Input{X: 500, Y: int(s.Y) + 2, Pressed: true}), "press outside the panel")

	p.Update(Input{X: 20, Y: int(titleHeight + s.Height() + 5), Pressed: true})
	assert.True(t, clicked)
}
