//go:build headless

package frontend

import (
	"github.com/ezrec/chip8/device"
	"github.com/ezrec/chip8/emulator"
)

const (
	WINDOW_SCALE = 10 // Host pixels per display pixel.
)

// Window is unavailable in headless builds.
type Window struct {
	Verbose  bool
	Title    string
	Scale    int
	Emulator *emulator.Emulator
}

// NewWindow always fails in headless builds.
func NewWindow(emu *emulator.Emulator, keymap device.Keymap) (win *Window, err error) {
	err = ErrNoWindow
	return
}

func (win *Window) Run() (err error) {
	err = ErrNoWindow
	return
}
