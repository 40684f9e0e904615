// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package emulator drives the CHIP-8 interpreter: timer ticks, the
// number of instructions per tick, keypad events and rendering.
package emulator

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"
	"maps"
	"time"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/internal"
)

const (
	CYCLES_PER_TICK = 10 // Interpreter steps per timer tick.
	TICK_RATE       = 60 // Timer ticks per second.
)

var _emulator_defines = map[string]string{
	"CYCLES_PER_TICK": fmt.Sprintf("%v", CYCLES_PER_TICK),
	"TICK_RATE":       fmt.Sprintf("%v", TICK_RATE),
}

// Event is a keypad press or release from the input collaborator.
type Event struct {
	Key     uint8
	Pressed bool
}

// Renderer receives the display once per tick.
type Renderer interface {
	Render(display *cpu.Display) error
}

// Clocked audio devices are advanced once per timer tick.
type Clocked interface {
	Clock() error
}

// Emulator state. CPU + program + audio trigger.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Listing of the running program, if assembled.
	Rom      []byte       // Program image loaded on reset.
	Audio    cpu.Audio    // Sound trigger.

	CyclesPerTick int // Interpreter steps per timer tick.
	TickRate      int // Timer ticks per second.

	Frames int // Timer ticks since reset.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:           cpu.NewCpu(),
		Program:       &cpu.Program{},
		CyclesPerTick: CYCLES_PER_TICK,
		TickRate:      TICK_RATE,
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Load sets an assembled program as the image to run.
func (emu *Emulator) Load(prog *cpu.Program) {
	emu.Program = prog
	emu.Rom = prog.Binary()
}

// LoadRom sets a raw program image to run, with no listing.
func (emu *Emulator) LoadRom(rom []byte) {
	emu.Program = &cpu.Program{}
	emu.Rom = rom
}

// Close the emulator, silencing and releasing the audio device.
func (emu *Emulator) Close() (err error) {
	if emu.Audio == nil {
		return
	}

	emu.Audio.Stop()
	if closer, ok := emu.Audio.(io.Closer); ok {
		err = closer.Close()
	}

	return
}

// Reset the emulator state and reload the program image.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	err = emu.Cpu.Reset(emu.Rom)
	if err != nil {
		return
	}

	if emu.Audio != nil && emu.Audio.IsPlaying() {
		emu.Audio.Stop()
	}

	emu.Frames = 0

	return
}

// Ticks returns the total instructions executed since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() int {
	return int(emu.Cpu.Pc)
}

// Code returns the instruction at the program counter.
func (emu *Emulator) Code() (ins cpu.Instruction, err error) {
	word, err := emu.Cpu.Memory.Word(emu.Cpu.Pc)
	if err != nil {
		return
	}

	return cpu.Decode(word)
}

// LineNo returns the current line number for the executing opcode.
func (emu *Emulator) LineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// Step performs a single interpreter step.
func (emu *Emulator) Step() (err error) {
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()

	err = emu.Cpu.Tick()
	if err != nil {
		err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
	}

	return
}

// Tick performs a single timer tick: the delay and sound timers are
// decremented, then CyclesPerTick interpreter steps are run.
func (emu *Emulator) Tick() (err error) {
	emu.Cpu.TickDelay()

	playing := emu.Audio != nil && emu.Audio.IsPlaying()
	emu.Cpu.TickSound(emu.Audio)
	if emu.Verbose && emu.Audio != nil && playing != emu.Audio.IsPlaying() {
		log.Printf("emulator: audio playing %v", emu.Audio.IsPlaying())
	}

	if clocked, ok := emu.Audio.(Clocked); ok {
		err = clocked.Clock()
		if err != nil {
			return
		}
	}

	emu.Frames++

	for range emu.CyclesPerTick {
		err = emu.Step()
		if err != nil {
			return
		}
		if emu.Cpu.Waiting() {
			break
		}
	}

	return
}

// Apply applies a keypad event.
func (emu *Emulator) Apply(ev Event) (err error) {
	if emu.Verbose {
		log.Printf("emulator: key %X pressed %v", ev.Key, ev.Pressed)
	}

	if ev.Pressed {
		return emu.Cpu.KeyDown(ev.Key)
	}

	return emu.Cpu.KeyUp(ev.Key)
}

// Run is the event loop. Keypad events are applied as they arrive, and on
// every timer tick the emulator is ticked and the display rendered. All
// state is mutated on the calling goroutine. Run returns on the first
// fatal error, or when the context is done.
func (emu *Emulator) Run(ctx context.Context, events <-chan Event, render Renderer) (err error) {
	if emu.TickRate <= 0 {
		err = ErrTickRate
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(emu.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			err = emu.Apply(ev)
		case <-ticker.C:
			err = emu.Tick()
			if err == nil && render != nil {
				err = render.Render(emu.Cpu.Display)
			}
		}
		if err != nil {
			return
		}
	}
}
