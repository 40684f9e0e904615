package cpu

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testAudio records the trigger transitions.
type testAudio struct {
	playing bool
	plays   int
	stops   int
}

func (ta *testAudio) Play() {
	ta.playing = true
	ta.plays++
}

func (ta *testAudio) Stop() {
	ta.playing = false
	ta.stops++
}

func (ta *testAudio) IsPlaying() bool {
	return ta.playing
}

func newTestCpu(t *testing.T, words ...uint16) (cpu *Cpu) {
	rom := make([]byte, 0, len(words)*2)
	for _, word := range words {
		rom = append(rom, byte(word>>8), byte(word))
	}

	cpu = NewCpu()
	cpu.Seed(1)
	err := cpu.Reset(rom)
	if err != nil {
		t.Fatal(err)
	}

	return
}

func doTicks(t *testing.T, cpu *Cpu, count int) {
	for range count {
		err := cpu.Tick()
		if err != nil {
			t.Log(cpu.String())
			t.Fatal(err)
		}
	}
}

func TestCpu_Reset(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x6005)
	cpu.Register[3] = 7
	cpu.I = 0x300
	cpu.Delay = 4
	cpu.Sound = 5
	cpu.Display.Toggle(0, 0)
	assert.NoError(cpu.Stack.Push(0x204))
	assert.NoError(cpu.Keypad.Set(2, true))

	err := cpu.Reset([]byte{0x12, 0x00})
	assert.NoError(err)

	assert.Equal(uint16(PROGRAM_START), cpu.Pc)
	assert.Equal([REGISTER_COUNT]uint8{}, cpu.Register)
	assert.Equal(uint16(0), cpu.I)
	assert.Equal(uint8(0), cpu.Delay)
	assert.Equal(uint8(0), cpu.Sound)
	assert.True(cpu.Stack.Empty())
	assert.False(cpu.Keypad.Pressed(2))
	assert.Equal(0, cpu.Display.Lit())
	assert.False(cpu.Waiting())
	assert.Equal(FONT[:], cpu.Memory[:len(FONT)])
	assert.Equal(byte(0x12), cpu.Memory[PROGRAM_START])

	assert.ErrorIs(cpu.Reset(make([]byte, PROGRAM_LIMIT+1)), ErrRomTooLarge)
}

func TestCpu_Defines(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	defines := maps.Collect(cpu.Defines())

	assert.Equal("0x200", defines["PROGRAM_START"])
	assert.Equal("0x1000", defines["MEMORY_SIZE"])
	assert.Equal("5", defines["FONT_HEIGHT"])
	assert.Equal("64", defines["SCREEN_WIDTH"])
	assert.Equal("32", defines["SCREEN_HEIGHT"])
}

func TestCpu_Scenario(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x6005, 0x6103, 0x8014)

	doTicks(t, cpu, 1)
	assert.Equal(uint8(5), cpu.Register[0])
	assert.Equal(uint16(0x202), cpu.Pc)

	doTicks(t, cpu, 1)
	assert.Equal(uint8(3), cpu.Register[1])
	assert.Equal(uint16(0x204), cpu.Pc)

	doTicks(t, cpu, 1)
	assert.Equal(uint8(8), cpu.Register[0])
	assert.Equal(uint8(0), cpu.Register[REG_VF])
	assert.Equal(uint16(0x206), cpu.Pc)
	assert.Equal(3, cpu.Ticks)
}

func TestCpu_AddByte(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		vx, kk, sum uint8
	}){
		{0x00, 0x00, 0x00},
		{0x01, 0x02, 0x03},
		{0xff, 0x02, 0x01},
		{0x80, 0x80, 0x00},
		{0xff, 0xff, 0xfe},
	}

	for _, entry := range table {
		cpu := newTestCpu(t, MakeCode(OP_ADD_BYTE, 4, 0, 0, uint16(entry.kk)))
		cpu.Register[4] = entry.vx
		cpu.Register[REG_VF] = 0x55
		doTicks(t, cpu, 1)
		assert.Equal(entry.sum, cpu.Register[4], "%#v", entry)
		assert.Equal(uint8(0x55), cpu.Register[REG_VF], "flag untouched")
	}
}

func TestCpu_Arithmetic(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op     Op
		vx, vy uint8
		result uint8
		vf     uint8
	}){
		{OP_ADD_REG, 0x05, 0x03, 0x08, 0},
		{OP_ADD_REG, 0xff, 0x02, 0x01, 1},
		{OP_ADD_REG, 0x80, 0x7f, 0xff, 0},
		{OP_ADD_REG, 0x80, 0x80, 0x00, 1},
		{OP_SUB, 0x05, 0x03, 0x02, 1},
		{OP_SUB, 0x03, 0x05, 0xfe, 0},
		{OP_SUB, 0x05, 0x05, 0x00, 0},
		{OP_SUBN, 0x03, 0x05, 0x02, 1},
		{OP_SUBN, 0x05, 0x03, 0xfe, 0},
		{OP_SUBN, 0x05, 0x05, 0x00, 0},
		{OP_SHR, 0x81, 0x00, 0x40, 1},
		{OP_SHR, 0x80, 0x00, 0x40, 0},
		{OP_SHL, 0x81, 0x00, 0x02, 1},
		{OP_SHL, 0x40, 0x00, 0x80, 0},
	}

	for _, entry := range table {
		cpu := newTestCpu(t, MakeCode(entry.op, 1, 2, 0, 0))
		cpu.Register[1] = entry.vx
		cpu.Register[2] = entry.vy
		cpu.Register[REG_VF] = 0x55
		doTicks(t, cpu, 1)
		assert.Equal(entry.result, cpu.Register[1], "%v %#v", entry.op, entry)
		assert.Equal(entry.vf, cpu.Register[REG_VF], "%v %#v", entry.op, entry)
		if entry.op != OP_SHR && entry.op != OP_SHL {
			assert.Equal(entry.vy, cpu.Register[2])
		}
	}
}

func TestCpu_Arithmetic_FlagRegister(t *testing.T) {
	assert := assert.New(t)

	// With vf as the destination, the flag is written last.
	cpu := newTestCpu(t, MakeCode(OP_ADD_REG, REG_VF, 1, 0, 0))
	cpu.Register[REG_VF] = 0xff
	cpu.Register[1] = 0x02
	doTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[REG_VF])

	cpu = newTestCpu(t, MakeCode(OP_SHR, REG_VF, 0, 0, 0))
	cpu.Register[REG_VF] = 0x02
	doTicks(t, cpu, 1)
	assert.Equal(uint8(0), cpu.Register[REG_VF])
}

func TestCpu_Logic(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		op     Op
		result uint8
	}){
		{OP_LD_REG, 0x0f},
		{OP_OR, 0x3f},
		{OP_AND, 0x0c},
		{OP_XOR, 0x33},
	}

	for _, entry := range table {
		cpu := newTestCpu(t, MakeCode(entry.op, 1, 2, 0, 0))
		cpu.Register[1] = 0x3c
		cpu.Register[2] = 0x0f
		cpu.Register[REG_VF] = 0x55
		doTicks(t, cpu, 1)
		assert.Equal(entry.result, cpu.Register[1], "%v", entry.op)
		assert.Equal(uint8(0x55), cpu.Register[REG_VF], "%v", entry.op)
	}
}

func TestCpu_Skip(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		word uint16
		skip bool
	}){
		{0x3105, true},  // se v1, 5
		{0x3106, false}, // se v1, 6
		{0x4105, false}, // sne v1, 5
		{0x4106, true},  // sne v1, 6
		{0x5120, true},  // se v1, v2
		{0x5130, false}, // se v1, v3
		{0x9120, false}, // sne v1, v2
		{0x9130, true},  // sne v1, v3
		{0xe49e, true},  // skp v4
		{0xe59e, false}, // skp v5
		{0xe4a1, false}, // sknp v4
		{0xe5a1, true},  // sknp v5
	}

	for _, entry := range table {
		cpu := newTestCpu(t, entry.word)
		cpu.Register[1] = 5
		cpu.Register[2] = 5
		cpu.Register[3] = 6
		cpu.Register[4] = 0x1a // low nibble is the key
		cpu.Register[5] = 0xb
		assert.NoError(cpu.Keypad.Set(0xa, true))

		doTicks(t, cpu, 1)
		expected := uint16(0x202)
		if entry.skip {
			expected = 0x204
		}
		assert.Equal(expected, cpu.Pc, "0x%04x", entry.word)
	}
}

func TestCpu_Jump(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x1345)
	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x345), cpu.Pc)

	cpu = newTestCpu(t, 0xb300)
	cpu.Register[0] = 4
	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x304), cpu.Pc)
}

func TestCpu_CallReturn(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0x2206, // 200: call 0x206
		0x6001, // 202: ld v0, 1
		0x1204, // 204: jp 0x204
		0x00ee, // 206: ret
	)

	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x206), cpu.Pc)
	assert.Equal(uint8(1), cpu.Stack.Sp)
	top, ok := cpu.Stack.Peek()
	assert.True(ok)
	assert.Equal(uint16(0x202), top)

	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x202), cpu.Pc)
	assert.Equal(uint8(0), cpu.Stack.Sp)

	doTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[0])
}

func TestCpu_StackOverflow(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x2200) // 200: call 0x200

	doTicks(t, cpu, STACK_LIMIT)
	assert.True(cpu.Stack.Full())

	err := cpu.Tick()
	assert.ErrorIs(err, ErrStackFull)

	// Fatal errors are latched.
	assert.Equal(err, cpu.Tick())
	assert.Equal(STACK_LIMIT, cpu.Ticks)
}

func TestCpu_StackUnderflow(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x00ee)

	err := cpu.Tick()
	assert.ErrorIs(err, ErrStackEmpty)
	assert.Equal(err, cpu.Tick())

	// Reset clears the latch.
	assert.NoError(cpu.Reset([]byte{0x60, 0x01}))
	assert.NoError(cpu.Tick())
}

func TestCpu_InvalidOpcode(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x6001, 0x0123)

	doTicks(t, cpu, 1)

	err := cpu.Tick()
	assert.ErrorIs(err, ErrOpcodeDecode)
	assert.ErrorIs(err, ErrOpcode(0))
	assert.Contains(err.Error(), "0x0123")
	assert.Contains(err.Error(), "(0, 1, 2, 3)")
	assert.Equal(uint16(0x202), cpu.Pc)

	assert.Equal(err, cpu.Tick())
}

func TestCpu_FetchRange(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t)

	cpu.Pc = 0xffe
	cpu.Memory[0xffe] = 0x60
	cpu.Memory[0xfff] = 0x07
	assert.NoError(cpu.Tick())
	assert.Equal(uint8(7), cpu.Register[0])
	assert.Equal(uint16(0x1000), cpu.Pc)

	err := cpu.Tick()
	assert.ErrorIs(err, ErrOpcodeFetch)
	assert.ErrorIs(err, ErrAddress{})

	cpu = newTestCpu(t)
	cpu.Pc = 0xfff
	assert.ErrorIs(cpu.Tick(), ErrAddress{})
}

func TestCpu_Index(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xa123, // ld i, 0x123
		0xf31e, // add i, v3
		0xf31e, // add i, v3
	)
	cpu.Register[3] = 0xff
	cpu.Register[REG_VF] = 0x55

	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x123), cpu.I)

	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x222), cpu.I)

	cpu.I = 0xfff
	doTicks(t, cpu, 1)
	assert.Equal(uint16(0x10fe), cpu.I)
	assert.Equal(uint8(0x55), cpu.Register[REG_VF])
}

func TestCpu_Random(t *testing.T) {
	assert := assert.New(t)

	program := []uint16{}
	for range 64 {
		program = append(program, 0xc10f) // rnd v1, 0x0f
	}

	cpu := newTestCpu(t, program...)
	other := newTestCpu(t, program...)

	for range 64 {
		doTicks(t, cpu, 1)
		doTicks(t, other, 1)
		assert.Equal(uint8(0), cpu.Register[1]&0xf0)
		assert.Equal(cpu.Register[1], other.Register[1])
	}

	cpu = newTestCpu(t, 0xc100)
	cpu.Register[1] = 0xff
	doTicks(t, cpu, 1)
	assert.Equal(uint8(0), cpu.Register[1])
}

func TestCpu_DrawFont(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xf029, // ld f, v0
		0xd015, // drw v0, v1, 5
		0xd015, // drw v0, v1, 5
	)

	doTicks(t, cpu, 1)
	assert.Equal(uint16(0), cpu.I)

	doTicks(t, cpu, 1)
	assert.Equal(uint8(0), cpu.Register[REG_VF])

	glyph := []string{
		"####....",
		"#..#....",
		"#..#....",
		"#..#....",
		"####....",
	}
	for row, line := range glyph {
		for col, c := range line {
			assert.Equal(c == '#', cpu.Display.Get(col, row), "(%d, %d)", col, row)
		}
	}
	assert.Equal(14, cpu.Display.Lit())

	// Drawing again erases the sprite and reports the collision.
	doTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[REG_VF])
	assert.Equal(0, cpu.Display.Lit())
}

func TestCpu_DrawWrap(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xa300, // ld i, 0x300
		0xd012, // drw v0, v1, 2
		0x00e0, // cls
	)
	cpu.Memory[0x300] = 0x80
	cpu.Memory[0x301] = 0x80
	cpu.Register[0] = 63
	cpu.Register[1] = 31

	doTicks(t, cpu, 2)
	assert.Equal(uint8(0), cpu.Register[REG_VF])
	assert.Equal(2, cpu.Display.Lit())
	assert.True(cpu.Display.Get(63, 31))
	assert.True(cpu.Display.Get(63, 0))

	doTicks(t, cpu, 1)
	assert.Equal(0, cpu.Display.Lit())
}

func TestCpu_DrawRange(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0xd015)
	cpu.I = 0xffe

	err := cpu.Tick()
	assert.ErrorIs(err, ErrAddress{})
	assert.Equal(0, cpu.Display.Lit())
}

func TestCpu_FontDigit(t *testing.T) {
	assert := assert.New(t)

	for digit := range uint8(16) {
		cpu := newTestCpu(t, 0xf329) // ld f, v3
		cpu.Register[3] = 0x10 | digit
		doTicks(t, cpu, 1)
		assert.Equal(uint16(digit)*FONT_HEIGHT, cpu.I)
	}
}

func TestCpu_Bcd(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		value uint8
		bcd   []byte
	}){
		{0, []byte{0, 0, 0}},
		{7, []byte{0, 0, 7}},
		{42, []byte{0, 4, 2}},
		{234, []byte{2, 3, 4}},
		{255, []byte{2, 5, 5}},
	}

	for _, entry := range table {
		cpu := newTestCpu(t, 0xf533) // ld b, v5
		cpu.Register[5] = entry.value
		cpu.I = 0x400
		doTicks(t, cpu, 1)
		assert.Equal(entry.bcd, cpu.Memory[0x400:0x403], "%d", entry.value)
		assert.Equal(uint16(0x400), cpu.I)
	}

	cpu := newTestCpu(t, 0xf533)
	cpu.I = 0xffe
	assert.ErrorIs(cpu.Tick(), ErrAddress{})
}

func TestCpu_LoadStore(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xf355, // ld [i], v3
		0x6000, // ld v0, 0
		0x6100, // ld v1, 0
		0xf265, // ld v2, [i]
	)
	cpu.I = 0x400
	cpu.Register = [REGISTER_COUNT]uint8{1, 2, 3, 4, 5}

	doTicks(t, cpu, 1)
	assert.Equal([]byte{1, 2, 3, 4, 0}, cpu.Memory[0x400:0x405])
	assert.Equal(uint16(0x400), cpu.I)

	cpu.Memory[0x402] = 9
	doTicks(t, cpu, 3)
	assert.Equal([REGISTER_COUNT]uint8{1, 2, 9, 4, 5}, cpu.Register)
	assert.Equal(uint16(0x400), cpu.I)

	cpu = newTestCpu(t, 0xf355)
	cpu.I = 0xffe
	assert.ErrorIs(cpu.Tick(), ErrAddress{})

	cpu = newTestCpu(t, 0xff65)
	cpu.I = 0xff0
	assert.NoError(cpu.Tick())
}

func TestCpu_Timers(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xf115, // ld dt, v1
		0xf207, // ld v2, dt
	)
	cpu.Register[1] = 2

	doTicks(t, cpu, 1)
	assert.Equal(uint8(2), cpu.Delay)

	cpu.TickDelay()
	doTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[2])

	cpu.TickDelay()
	assert.Equal(uint8(0), cpu.Delay)
	cpu.TickDelay()
	assert.Equal(uint8(0), cpu.Delay)
}

func TestCpu_Sound(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0xf018) // ld st, v0
	cpu.Register[0] = 2
	audio := &testAudio{}

	doTicks(t, cpu, 1)
	assert.Equal(uint8(2), cpu.Sound)
	assert.False(audio.IsPlaying())

	cpu.TickSound(audio)
	assert.Equal(uint8(1), cpu.Sound)
	assert.True(audio.IsPlaying())

	cpu.TickSound(audio)
	assert.Equal(uint8(0), cpu.Sound)
	assert.False(audio.IsPlaying())
	assert.Equal(1, audio.plays)
	assert.Equal(1, audio.stops)

	cpu.TickSound(audio)
	assert.Equal(uint8(0), cpu.Sound)
	assert.Equal(1, audio.plays)
	assert.Equal(1, audio.stops)

	// No audio collaborator.
	cpu.Sound = 1
	cpu.TickSound(nil)
	assert.Equal(uint8(0), cpu.Sound)
}

func TestCpu_KeyWait(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t,
		0xf30a, // ld v3, k
		0x6001, // ld v0, 1
	)

	doTicks(t, cpu, 1)
	assert.True(cpu.Waiting())
	assert.Equal(uint16(0x202), cpu.Pc)

	// No progress while suspended; timers still run.
	cpu.Delay = 3
	doTicks(t, cpu, 5)
	cpu.TickDelay()
	assert.Equal(uint16(0x202), cpu.Pc)
	assert.Equal(1, cpu.Ticks)
	assert.Equal(uint8(2), cpu.Delay)

	assert.ErrorIs(cpu.KeyDown(0x10), ErrKeyInvalid)
	assert.True(cpu.Waiting())

	assert.NoError(cpu.KeyDown(0x7))
	assert.False(cpu.Waiting())
	assert.Equal(uint8(7), cpu.Register[3])
	assert.True(cpu.Keypad.Pressed(7))

	doTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[0])

	assert.NoError(cpu.KeyUp(0x7))
	assert.False(cpu.Keypad.Pressed(7))
}

func TestCpu_KeyWait_Held(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0xf30a) // ld v3, k
	cpu.Register[3] = 0xff

	assert.NoError(cpu.KeyDown(5))
	doTicks(t, cpu, 1)
	assert.True(cpu.Waiting())

	// A key held before the wait does not satisfy it.
	assert.NoError(cpu.KeyDown(5))
	assert.True(cpu.Waiting())
	assert.Equal(uint8(0xff), cpu.Register[3])

	assert.NoError(cpu.KeyUp(5))
	assert.True(cpu.Waiting())

	assert.NoError(cpu.KeyDown(5))
	assert.False(cpu.Waiting())
	assert.Equal(uint8(5), cpu.Register[3])
}

func TestCpu_String(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(t, 0x2206)
	cpu.Register[0xa] = 0x5c
	doTicks(t, cpu, 1)

	text := cpu.String()
	assert.Contains(text, "pc: 206")
	assert.Contains(text, "va: 5C")
	assert.Contains(text, "stack: 202 (1)")
}
