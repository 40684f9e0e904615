// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/device"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/frontend"
	"github.com/ezrec/chip8/internal"
	"github.com/ezrec/chip8/translate"
)

type options struct {
	compile  string
	save     string
	listing  bool
	defines  bool
	cycles   int
	hz       int
	scale    int
	terminal bool
	wav      string
	mute     bool
	seed     uint64
	lang     string
	keys     string
	verbose  bool
}

func main() {
	var opt options

	flag.StringVar(&opt.compile, "c", "", ".asm file to assemble")
	flag.StringVar(&opt.save, "s", "", "Save program image to file, do not execute")
	flag.BoolVar(&opt.listing, "d", false, "Disassemble the program, do not execute")
	flag.BoolVar(&opt.defines, "defines", false, "List the assembler predefines, do not execute")
	flag.IntVar(&opt.cycles, "cycles", emulator.CYCLES_PER_TICK, "Instructions per timer tick")
	flag.IntVar(&opt.hz, "hz", emulator.TICK_RATE, "Timer ticks per second")
	flag.IntVar(&opt.scale, "scale", frontend.WINDOW_SCALE, "Window pixels per display pixel")
	flag.BoolVar(&opt.terminal, "term", false, "Run in the terminal")
	flag.StringVar(&opt.wav, "wav", "", "Record the buzzer to a .wav file")
	flag.BoolVar(&opt.mute, "mute", false, "No sound output")
	flag.Uint64Var(&opt.seed, "seed", 0, "Random number seed, 0 for unseeded")
	flag.StringVar(&opt.lang, "lang", "", "Message language (BCP 47)")
	flag.StringVar(&opt.keys, "keys", device.DEFAULT_KEYS, "Host keys for keypad 0 through F")
	flag.BoolVar(&opt.verbose, "v", false, "Verbose mode")

	flag.Parse()

	if len(opt.lang) != 0 {
		err := translate.SetLanguage(opt.lang)
		if err != nil {
			log.Fatalf("%v: %v", opt.lang, err)
		}
	}

	emu := emulator.NewEmulator()
	emu.Verbose = opt.verbose

	if opt.defines {
		for equ, value := range internal.IterSeq2Sorted(emu.Defines()) {
			fmt.Printf("%v = %v\n", equ, value)
		}
		return
	}

	err := load(emu, &opt)
	if err != nil {
		log.Fatalf("%v", err)
	}

	switch {
	case len(opt.save) != 0:
		err = os.WriteFile(opt.save, emu.Rom, 0o644)
		if err != nil {
			log.Fatalf("%v: %v", opt.save, err)
		}
		return
	case opt.listing:
		for addr, ins := range cpu.Disassemble(emu.Rom) {
			fmt.Printf("%03x: %04x  %v\n", addr, ins.Word, ins)
		}
		return
	}

	err = run(emu, &opt)
	if err != nil {
		log.Fatalf("%v\n%v", err, emu.Cpu)
	}
}

// load assembles or reads the program image.
func load(emu *emulator.Emulator, opt *options) (err error) {
	if len(opt.compile) != 0 {
		if flag.NArg() != 0 {
			err = fmt.Errorf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
			return
		}

		var inf *os.File
		inf, err = os.Open(opt.compile)
		if err != nil {
			return
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: opt.verbose}
		for equ, value := range emu.Defines() {
			asm.Predefine(equ, value)
		}

		var prog *cpu.Program
		prog, err = asm.Parse(inf)
		if err != nil {
			err = fmt.Errorf("%v: %w", opt.compile, err)
			return
		}

		emu.Load(prog)
		return
	}

	if flag.NArg() != 1 {
		err = fmt.Errorf("%v: expected one ROM file, or -c", os.Args[0])
		return
	}

	rom, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		return
	}

	emu.LoadRom(rom)
	return
}

// openAudio selects the sound trigger.
func openAudio(opt *options) (audio cpu.Audio, err error) {
	switch {
	case len(opt.wav) != 0:
		var ouf *os.File
		ouf, err = os.Create(opt.wav)
		if err != nil {
			return
		}
		audio = &wavFile{
			Recorder: device.NewRecorder(ouf, device.SAMPLE_RATE, opt.hz),
			file:     ouf,
		}
	case opt.mute:
		audio = &device.Null{}
	default:
		var bp *device.Beeper
		bp, err = device.NewBeeper(device.SAMPLE_RATE)
		if err != nil {
			if opt.verbose {
				log.Printf("audio: %v", err)
			}
			audio = &device.Null{}
			err = nil
			return
		}
		bp.Verbose = opt.verbose
		audio = bp
	}

	return
}

// wavFile closes the file backing a recorder.
type wavFile struct {
	*device.Recorder
	file *os.File
}

func (wf *wavFile) Close() (err error) {
	return errors.Join(wf.Recorder.Close(), wf.file.Close())
}

func run(emu *emulator.Emulator, opt *options) (err error) {
	if opt.hz <= 0 {
		err = emulator.ErrTickRate
		return
	}

	keymap, err := device.ParseKeymap(opt.keys)
	if err != nil {
		err = fmt.Errorf("%v: %w", opt.keys, err)
		return
	}

	emu.CyclesPerTick = opt.cycles
	emu.TickRate = opt.hz

	emu.Audio, err = openAudio(opt)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, emu.Close())
	}()

	if opt.seed != 0 {
		emu.Cpu.Seed(opt.seed)
	}

	err = emu.Reset()
	if err != nil {
		return
	}

	if opt.terminal {
		return runTerminal(emu, keymap, opt)
	}

	win, err := frontend.NewWindow(emu, keymap)
	if err != nil {
		return
	}
	win.Verbose = opt.verbose
	win.Scale = opt.scale

	return win.Run()
}

func runTerminal(emu *emulator.Emulator, keymap device.Keymap, opt *options) (err error) {
	tm, err := frontend.NewTerminal(os.Stdin, os.Stdout, keymap)
	if err != nil {
		return
	}
	tm.Verbose = opt.verbose

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithCancel(ctx)
	defer stop()

	events, err := tm.Start(ctx, cancel)
	if err != nil {
		cancel()
		return
	}

	err = emu.Run(ctx, events, tm)
	cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	err = errors.Join(err, tm.Close())

	return
}
