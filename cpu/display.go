package cpu

import (
	"strings"
)

const (
	SCREEN_WIDTH  = 64 // Logical display width in pixels.
	SCREEN_HEIGHT = 32 // Logical display height in pixels.
)

// Display is the monochrome bitmap, indexed as Pixel[row][col].
// Coordinates wrap at the edges, giving a toroidal screen.
type Display struct {
	Width  int
	Height int
	Pixel  [][]bool
}

// NewDisplay creates a cleared display of the given size.
func NewDisplay(width, height int) (d *Display) {
	d = &Display{
		Width:  width,
		Height: height,
		Pixel:  make([][]bool, height),
	}

	for row := range d.Pixel {
		d.Pixel[row] = make([]bool, width)
	}

	return
}

// Clear unsets every pixel.
func (d *Display) Clear() {
	for _, line := range d.Pixel {
		clear(line)
	}
}

// Toggle XORs a single pixel, wrapping the coordinates, and returns
// true if the pixel was lit before the toggle.
func (d *Display) Toggle(col, row int) (was bool) {
	col = ((col % d.Width) + d.Width) % d.Width
	row = ((row % d.Height) + d.Height) % d.Height

	was = d.Pixel[row][col]
	d.Pixel[row][col] = !was
	return
}

// Draw XORs an 8 pixel wide sprite, one byte per row, with its top left
// corner at (x, y). Returns true if any lit sprite bit landed on a pixel
// that was already lit.
func (d *Display) Draw(x, y int, sprite []byte) (collision bool) {
	for row, bits := range sprite {
		for col := range 8 {
			if bits&(0x80>>col) == 0 {
				continue
			}
			if d.Toggle(x+col, y+row) {
				collision = true
			}
		}
	}

	return
}

// Get returns the pixel at (col, row), wrapping the coordinates.
func (d *Display) Get(col, row int) bool {
	col = ((col % d.Width) + d.Width) % d.Width
	row = ((row % d.Height) + d.Height) % d.Height
	return d.Pixel[row][col]
}

// Lit returns the count of lit pixels.
func (d *Display) Lit() (count int) {
	for _, line := range d.Pixel {
		for _, lit := range line {
			if lit {
				count++
			}
		}
	}
	return
}

// String renders the display as rows of '#' and '.'.
func (d *Display) String() string {
	var sb strings.Builder
	for _, line := range d.Pixel {
		for _, lit := range line {
			if lit {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
