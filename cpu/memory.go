package cpu

const (
	MEMORY_SIZE   = 0x1000 // Bytes of addressable memory.
	FONT_BASE     = 0x000  // Address of the font table.
	FONT_HEIGHT   = 5      // Bytes per font glyph.
	PROGRAM_START = 0x200  // Load address of the program image.
	PROGRAM_LIMIT = MEMORY_SIZE - PROGRAM_START
)

// FONT is the hexadecimal digit sprite table, glyph d at [5d, 5d+5).
var FONT = [16 * FONT_HEIGHT]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// Memory is the flat 4KiB address space. Addresses never wrap.
type Memory [MEMORY_SIZE]byte

// Reset clears memory, then installs the font table and the program image.
// An image larger than PROGRAM_LIMIT bytes returns ErrRomTooLarge and
// leaves memory unchanged.
func (mem *Memory) Reset(rom []byte) (err error) {
	if len(rom) > PROGRAM_LIMIT {
		err = ErrRomTooLarge
		return
	}

	clear(mem[:])
	copy(mem[FONT_BASE:], FONT[:])
	copy(mem[PROGRAM_START:], rom)

	return
}

// Slice returns the length bytes starting at addr, aliasing memory.
func (mem *Memory) Slice(addr uint16, length int) (data []byte, err error) {
	end := int(addr) + length
	if length < 0 || end > MEMORY_SIZE {
		err = ErrAddress{Address: addr, Length: length}
		return
	}

	data = mem[addr:end]
	return
}

// Load reads a single byte.
func (mem *Memory) Load(addr uint16) (value byte, err error) {
	data, err := mem.Slice(addr, 1)
	if err != nil {
		return
	}

	value = data[0]
	return
}

// Store writes a single byte.
func (mem *Memory) Store(addr uint16, value byte) (err error) {
	data, err := mem.Slice(addr, 1)
	if err != nil {
		return
	}

	data[0] = value
	return
}

// Word reads the big-endian instruction word at addr.
func (mem *Memory) Word(addr uint16) (word uint16, err error) {
	data, err := mem.Slice(addr, 2)
	if err != nil {
		return
	}

	word = uint16(data[0])<<8 | uint16(data[1])
	return
}
