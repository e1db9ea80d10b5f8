package ui

import "github.com/hajimehoshi/ebiten/v2"

// Input is the mouse state the widgets react to during one frame.
type Input struct {
	X, Y    int
	Pressed bool    // left button held
	Wheel   float64 // vertical wheel delta, positive scrolls up
}

// PollInput reads the current mouse state from ebiten.
func PollInput() Input {
	x, y := ebiten.CursorPosition()
	_, dy := ebiten.Wheel()
	return Input{
		X:       x,
		Y:       y,
		Pressed: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		Wheel:   dy,
	}
}

// Over reports whether the cursor is inside the rectangle.
func (in Input) Over(x, y, w, h float64) bool {
	mx, my := float64(in.X), float64(in.Y)
	return mx >= x && mx <= x+w && my >= y && my <= y+h
}
