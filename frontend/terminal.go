package frontend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/device"
	"github.com/ezrec/chip8/emulator"
)

const (
	KEY_HOLD = 250 * time.Millisecond // Synthesized key release delay.

	keyEscape    = 0x1b
	keyInterrupt = 0x03
)

// Terminal renders the display as text and reads the keypad from a raw
// mode terminal. Terminals only report key presses, so a release is
// synthesized once a key has not repeated for Hold.
type Terminal struct {
	Verbose bool
	Keymap  device.Keymap
	Hold    time.Duration

	in    *os.File
	out   io.Writer
	state *term.State
	frame bytes.Buffer

	mutex sync.Mutex
	held  map[uint8]*time.Timer
}

var _ emulator.Renderer = (*Terminal)(nil)

// NewTerminal creates a terminal frontend.
func NewTerminal(in *os.File, out io.Writer, keymap device.Keymap) (tm *Terminal, err error) {
	if !term.IsTerminal(int(in.Fd())) {
		err = ErrNotTerminal
		return
	}

	tm = &Terminal{
		Keymap: keymap,
		Hold:   KEY_HOLD,
		in:     in,
		out:    out,
		held:   map[uint8]*time.Timer{},
	}

	return
}

// Start puts the terminal in raw mode and returns the keypad events.
// Escape or Ctrl-C calls cancel.
func (tm *Terminal) Start(ctx context.Context, cancel context.CancelFunc) (events <-chan emulator.Event, err error) {
	fd := int(tm.in.Fd())

	width, height, err := term.GetSize(fd)
	if err != nil {
		return
	}
	if width < cpu.SCREEN_WIDTH || height < (cpu.SCREEN_HEIGHT+1)/2 {
		err = fmt.Errorf("%w: %dx%d", ErrTerminalSize, width, height)
		return
	}

	tm.state, err = term.MakeRaw(fd)
	if err != nil {
		return
	}

	// Clear screen, hide cursor.
	fmt.Fprint(tm.out, "\x1b[2J\x1b[?25l")

	ch := make(chan emulator.Event)
	go tm.read(ctx, cancel, ch)

	events = ch
	return
}

func (tm *Terminal) read(ctx context.Context, cancel context.CancelFunc, events chan<- emulator.Event) {
	buf := make([]byte, 16)
	for {
		n, err := tm.in.Read(buf)
		if err != nil {
			if tm.Verbose {
				log.Printf("terminal: %v", err)
			}
			cancel()
			return
		}

		for _, b := range buf[:n] {
			switch b {
			case keyEscape, keyInterrupt:
				cancel()
				return
			}

			key, ok := tm.Keymap.Lookup(rune(b))
			if !ok {
				continue
			}
			tm.press(ctx, events, key)
		}
	}
}

func send(ctx context.Context, events chan<- emulator.Event, ev emulator.Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// press sends a key press, unless the key is already held, and
// (re)schedules its release.
func (tm *Terminal) press(ctx context.Context, events chan<- emulator.Event, key uint8) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	timer, ok := tm.held[key]
	if ok && timer.Stop() {
		timer.Reset(tm.Hold)
		return
	}

	send(ctx, events, emulator.Event{Key: key, Pressed: true})

	timer = time.AfterFunc(tm.Hold, func() {
		tm.release(ctx, events, key, timer)
	})
	tm.held[key] = timer
}

// release sends a key release, unless timer was superseded by a later
// press while it waited on the lock.
func (tm *Terminal) release(ctx context.Context, events chan<- emulator.Event, key uint8, timer *time.Timer) {
	tm.mutex.Lock()
	current := tm.held[key] == timer
	if current {
		delete(tm.held, key)
	}
	tm.mutex.Unlock()

	if current {
		send(ctx, events, emulator.Event{Key: key, Pressed: false})
	}
}

// Render draws two display rows per text line with half blocks.
func (tm *Terminal) Render(display *cpu.Display) (err error) {
	tm.frame.Reset()
	tm.frame.WriteString("\x1b[H")

	for row := 0; row < display.Height; row += 2 {
		for col := range display.Width {
			upper := display.Get(col, row)
			lower := row+1 < display.Height && display.Get(col, row+1)
			switch {
			case upper && lower:
				tm.frame.WriteString("█")
			case upper:
				tm.frame.WriteString("▀")
			case lower:
				tm.frame.WriteString("▄")
			default:
				tm.frame.WriteByte(' ')
			}
		}
		tm.frame.WriteString("\r\n")
	}

	_, err = tm.out.Write(tm.frame.Bytes())
	return
}

// Close restores the terminal.
func (tm *Terminal) Close() (err error) {
	tm.mutex.Lock()
	for key, timer := range tm.held {
		timer.Stop()
		delete(tm.held, key)
	}
	tm.mutex.Unlock()

	if tm.state == nil {
		return
	}

	// Show cursor.
	fmt.Fprint(tm.out, "\x1b[?25h\r\n")

	err = term.Restore(int(tm.in.Fd()), tm.state)
	tm.state = nil
	return
}
