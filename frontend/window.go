//go:build !headless

package frontend

import (
	"fmt"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ezrec/chip8/device"
	"github.com/ezrec/chip8/emulator"
)

const (
	WINDOW_SCALE = 10 // Host pixels per display pixel.
)

var (
	COLOR_ON  = [4]byte{0xff, 0xff, 0xff, 0xff}
	COLOR_OFF = [4]byte{0x00, 0x00, 0x00, 0xff}
)

// Window runs an emulator in a desktop window. The emulator is ticked
// from the window's update loop, at the emulator's tick rate.
type Window struct {
	Verbose  bool
	Title    string
	Scale    int
	Emulator *emulator.Emulator

	keys   map[ebiten.Key]uint8
	image  *ebiten.Image
	pixels []byte
}

// keyOf finds the window key for a physical key character.
func keyOf(r rune) (key ebiten.Key, err error) {
	var name string
	switch {
	case r >= '0' && r <= '9':
		name = "Digit" + string(r)
	case r >= 'a' && r <= 'z':
		name = string(r)
	default:
		err = fmt.Errorf("%w: %q", ErrKeyUnsupported, r)
		return
	}

	err = key.UnmarshalText([]byte(name))
	if err != nil {
		err = fmt.Errorf("%w: %q", ErrKeyUnsupported, r)
	}

	return
}

// NewWindow binds an emulator to a window, with a keymap.
func NewWindow(emu *emulator.Emulator, keymap device.Keymap) (win *Window, err error) {
	keys := make(map[ebiten.Key]uint8, len(keymap))
	for r, logical := range keymap {
		var key ebiten.Key
		key, err = keyOf(r)
		if err != nil {
			return
		}
		keys[key] = logical
	}

	win = &Window{
		Title:    "CHIP-8",
		Scale:    WINDOW_SCALE,
		Emulator: emu,
		keys:     keys,
	}

	return
}

// Update applies key edges, then ticks the emulator.
func (win *Window) Update() (err error) {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	for key, logical := range win.keys {
		if inpututil.IsKeyJustPressed(key) {
			err = win.Emulator.Apply(emulator.Event{Key: logical, Pressed: true})
		} else if inpututil.IsKeyJustReleased(key) {
			err = win.Emulator.Apply(emulator.Event{Key: logical, Pressed: false})
		}
		if err != nil {
			return
		}
	}

	return win.Emulator.Tick()
}

// Draw renders the display.
func (win *Window) Draw(screen *ebiten.Image) {
	display := win.Emulator.Display

	if win.image == nil {
		win.image = ebiten.NewImage(display.Width, display.Height)
		win.pixels = make([]byte, display.Width*display.Height*4)
	}

	for row := range display.Height {
		for col := range display.Width {
			color := COLOR_OFF
			if display.Get(col, row) {
				color = COLOR_ON
			}
			copy(win.pixels[(row*display.Width+col)*4:], color[:])
		}
	}

	win.image.WritePixels(win.pixels)
	screen.DrawImage(win.image, nil)
}

// Layout is the display resolution; ebiten scales it to the window.
func (win *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	display := win.Emulator.Display
	return display.Width, display.Height
}

// Run opens the window, returning when it is closed or on a fatal error.
func (win *Window) Run() (err error) {
	display := win.Emulator.Display

	ebiten.SetWindowSize(display.Width*win.Scale, display.Height*win.Scale)
	ebiten.SetWindowTitle(win.Title)
	ebiten.SetTPS(win.Emulator.TickRate)

	if win.Verbose {
		log.Printf("window: %dx%d at %d ticks/second", display.Width*win.Scale, display.Height*win.Scale, win.Emulator.TickRate)
	}

	err = ebiten.RunGame(win)
	return
}
