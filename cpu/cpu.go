// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"
)

const (
	REGISTER_COUNT = 16  // General purpose registers v0-vf.
	REG_VF         = 0xf // Carry, borrow and collision flag.
)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE":   fmt.Sprintf("0x%x", MEMORY_SIZE),
	"FONT_BASE":     fmt.Sprintf("0x%x", FONT_BASE),
	"FONT_HEIGHT":   fmt.Sprintf("%d", FONT_HEIGHT),
	"PROGRAM_START": fmt.Sprintf("0x%x", PROGRAM_START),
	"SCREEN_WIDTH":  fmt.Sprintf("%d", SCREEN_WIDTH),
	"SCREEN_HEIGHT": fmt.Sprintf("%d", SCREEN_HEIGHT),
	"STACK_LIMIT":   fmt.Sprintf("%d", STACK_LIMIT),
	"KEY_COUNT":     fmt.Sprintf("%d", KEY_COUNT),
}

// Cpu is the simulation context for the interpreter and the state it mutates.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory   Memory                // Main memory.
	Register [REGISTER_COUNT]uint8 // Register bank.
	I        uint16                // Address register.
	Delay    uint8                 // Delay timer.
	Sound    uint8                 // Sound timer.
	Pc       uint16                // Program counter.
	Stack    Stack                 // Return address stack.
	Display  *Display              // Bitmap display.
	Keypad   Keypad                // Keypad state, written by the input collaborator.
	Rand     *rand.Rand            // Source for the rnd instruction.

	Ticks int // Instructions executed since reset.

	waitKey   int   // Register awaiting a key press, or -1.
	lastError error // Once set, returned from every Tick.
}

// NewCpu creates a new CPU with an empty program.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Display: NewDisplay(SCREEN_WIDTH, SCREEN_HEIGHT),
		Rand:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		waitKey: -1,
	}

	_ = cpu.Reset(nil)

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Seed makes the rnd instruction deterministic.
func (cpu *Cpu) Seed(seed uint64) {
	cpu.Rand = rand.New(rand.NewPCG(seed, seed))
}

// Reset the CPU state.
// - Clears the registers, timers, stack, display and keypad.
// - Loads the font table and the program image into memory.
// - Sets the program counter to the program start.
func (cpu *Cpu) Reset(rom []byte) (err error) {
	if cpu.Verbose {
		log.Printf("cpu: reset, %d byte program", len(rom))
	}

	err = cpu.Memory.Reset(rom)
	if err != nil {
		return
	}

	clear(cpu.Register[:])
	cpu.I = 0
	cpu.Delay = 0
	cpu.Sound = 0
	cpu.Pc = PROGRAM_START
	cpu.Stack.Reset()
	cpu.Display.Clear()
	cpu.Keypad.Reset()
	cpu.Ticks = 0
	cpu.waitKey = -1
	cpu.lastError = nil

	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %03X\n", "pc", cpu.Pc)
	text += fmt.Sprintf("% 5s: %03X\n", "i", cpu.I)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %02X\n", fmt.Sprintf("v%x", n), val)
	}
	text += fmt.Sprintf("% 5s: %02X\n", "dt", cpu.Delay)
	text += fmt.Sprintf("% 5s: %02X\n", "st", cpu.Sound)

	var strval string
	if val, ok := cpu.Stack.Peek(); ok {
		strval = fmt.Sprintf("%03X (%d)", val, cpu.Stack.Sp)
	} else {
		strval = "---"
	}
	text += fmt.Sprintf("% 5s: %v\n", "stack", strval)

	return
}

// Waiting returns true while a 'ld vx, k' is suspended on a key press.
func (cpu *Cpu) Waiting() bool {
	return cpu.waitKey >= 0
}

// KeyDown records a key press. A press resumes a suspended 'ld vx, k',
// storing the key in the awaiting register. A key that is already held
// does not produce a second press.
func (cpu *Cpu) KeyDown(key uint8) (err error) {
	held := key < KEY_COUNT && cpu.Keypad[key]

	err = cpu.Keypad.Set(key, true)
	if err != nil || held {
		return
	}

	if cpu.Waiting() {
		if cpu.Verbose {
			log.Printf("cpu: key %X resumes v%x", key, cpu.waitKey)
		}
		cpu.Register[cpu.waitKey] = key
		cpu.waitKey = -1
	}

	return
}

// KeyUp records a key release.
func (cpu *Cpu) KeyUp(key uint8) (err error) {
	return cpu.Keypad.Set(key, false)
}

// TickDelay decrements the delay timer toward zero.
func (cpu *Cpu) TickDelay() {
	if cpu.Delay > 0 {
		cpu.Delay--
	}
}

// TickSound decrements the sound timer toward zero, keeping the audio
// trigger playing while it is active and stopping it when it expires.
func (cpu *Cpu) TickSound(audio Audio) {
	if cpu.Sound == 0 {
		return
	}

	if audio != nil && !audio.IsPlaying() {
		audio.Play()
	}

	cpu.Sound--

	if cpu.Sound == 0 && audio != nil {
		audio.Stop()
	}
}

// FetchCode fetches and decodes the instruction at the program counter,
// then advances the program counter past it.
func (cpu *Cpu) FetchCode() (ins Instruction, err error) {
	word, err := cpu.Memory.Word(cpu.Pc)
	if err != nil {
		err = errors.Join(ErrOpcodeFetch, err)
		return
	}

	ins, err = Decode(word)
	if err != nil {
		err = errors.Join(ErrOpcodeDecode, err)
		return
	}

	cpu.Pc += 2

	return
}

// Tick executes a single CPU instruction cycle.
// While suspended on a key press, Tick makes no progress.
func (cpu *Cpu) Tick() (err error) {
	if cpu.lastError != nil {
		return cpu.lastError
	}

	if cpu.Waiting() {
		return
	}

	defer func() {
		if err != nil {
			cpu.lastError = err
		}
	}()

	pc := cpu.Pc

	ins, err := cpu.FetchCode()
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("%03x: %v", pc, ins)
	}

	err = cpu.Execute(ins)
	if err != nil {
		// Leave the program counter at the faulting instruction.
		cpu.Pc = pc
		return
	}

	cpu.Ticks++

	return
}

// skipIf advances past the next instruction when cond holds.
func (cpu *Cpu) skipIf(cond bool) {
	if cond {
		cpu.Pc += 2
	}
}

// Execute executes a single decoded instruction. The program counter
// must already point at the following instruction.
func (cpu *Cpu) Execute(ins Instruction) (err error) {
	x, y := ins.X(), ins.Y()
	vx, vy := cpu.Register[x], cpu.Register[y]
	reg := &cpu.Register

	switch ins.Op {
	case OP_CLS:
		cpu.Display.Clear()
	case OP_RET:
		var pc uint16
		pc, err = cpu.Stack.Pop()
		if err != nil {
			return
		}
		cpu.Pc = pc
	case OP_JP:
		cpu.Pc = ins.NNN()
	case OP_CALL:
		err = cpu.Stack.Push(cpu.Pc)
		if err != nil {
			return
		}
		cpu.Pc = ins.NNN()
	case OP_SE_BYTE:
		cpu.skipIf(vx == ins.KK())
	case OP_SNE_BYTE:
		cpu.skipIf(vx != ins.KK())
	case OP_SE_REG:
		cpu.skipIf(vx == vy)
	case OP_SNE_REG:
		cpu.skipIf(vx != vy)
	case OP_LD_BYTE:
		reg[x] = ins.KK()
	case OP_ADD_BYTE:
		reg[x] = vx + ins.KK()
	case OP_LD_REG:
		reg[x] = vy
	case OP_OR:
		reg[x] = vx | vy
	case OP_AND:
		reg[x] = vx & vy
	case OP_XOR:
		reg[x] = vx ^ vy
	case OP_ADD_REG:
		sum := uint16(vx) + uint16(vy)
		reg[x] = uint8(sum)
		reg[REG_VF] = flag(sum > 0xff)
	case OP_SUB:
		reg[x] = vx - vy
		reg[REG_VF] = flag(vx > vy)
	case OP_SUBN:
		reg[x] = vy - vx
		reg[REG_VF] = flag(vy > vx)
	case OP_SHR:
		reg[x] = vx >> 1
		reg[REG_VF] = vx & 1
	case OP_SHL:
		reg[x] = vx << 1
		reg[REG_VF] = vx >> 7
	case OP_LD_I:
		cpu.I = ins.NNN()
	case OP_JP_V0:
		cpu.Pc = ins.NNN() + uint16(reg[0])
	case OP_RND:
		reg[x] = uint8(cpu.Rand.UintN(256)) & ins.KK()
	case OP_DRW:
		var sprite []byte
		sprite, err = cpu.Memory.Slice(cpu.I, int(ins.N()))
		if err != nil {
			return
		}
		collision := cpu.Display.Draw(int(vx), int(vy), sprite)
		reg[REG_VF] = flag(collision)
	case OP_SKP:
		cpu.skipIf(cpu.Keypad.Pressed(vx))
	case OP_SKNP:
		cpu.skipIf(!cpu.Keypad.Pressed(vx))
	case OP_LD_VX_DT:
		reg[x] = cpu.Delay
	case OP_LD_VX_K:
		if cpu.Verbose {
			log.Printf("cpu: v%x awaits key", x)
		}
		cpu.waitKey = int(x)
	case OP_LD_DT_VX:
		cpu.Delay = vx
	case OP_LD_ST_VX:
		cpu.Sound = vx
	case OP_ADD_I:
		cpu.I += uint16(vx)
	case OP_LD_F:
		cpu.I = FONT_BASE + uint16(vx&0xf)*FONT_HEIGHT
	case OP_LD_B:
		var bcd []byte
		bcd, err = cpu.Memory.Slice(cpu.I, 3)
		if err != nil {
			return
		}
		bcd[0] = vx / 100
		bcd[1] = (vx / 10) % 10
		bcd[2] = vx % 10
	case OP_LD_MEM_VX:
		var data []byte
		data, err = cpu.Memory.Slice(cpu.I, int(x)+1)
		if err != nil {
			return
		}
		copy(data, reg[:x+1])
	case OP_LD_VX_MEM:
		var data []byte
		data, err = cpu.Memory.Slice(cpu.I, int(x)+1)
		if err != nil {
			return
		}
		copy(reg[:x+1], data)
	default:
		err = errors.Join(ErrOpcodeDecode, ErrOpcode(ins.Word))
		return
	}

	return
}

// flag converts a condition to a vf value.
func flag(cond bool) uint8 {
	if cond {
		return 1
	}
	return 0
}
