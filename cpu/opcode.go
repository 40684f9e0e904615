package cpu

import (
	"fmt"
)

// Op is one of the 34 instruction forms.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_CLS       = Op(0)  // cls
	OP_RET       = Op(1)  // ret
	OP_JP        = Op(2)  // jp addr
	OP_CALL      = Op(3)  // call addr
	OP_SE_BYTE   = Op(4)  // se vx, byte
	OP_SNE_BYTE  = Op(5)  // sne vx, byte
	OP_SE_REG    = Op(6)  // se vx, vy
	OP_LD_BYTE   = Op(7)  // ld vx, byte
	OP_ADD_BYTE  = Op(8)  // add vx, byte
	OP_LD_REG    = Op(9)  // ld vx, vy
	OP_OR        = Op(10) // or vx, vy
	OP_AND       = Op(11) // and vx, vy
	OP_XOR       = Op(12) // xor vx, vy
	OP_ADD_REG   = Op(13) // add vx, vy
	OP_SUB       = Op(14) // sub vx, vy
	OP_SHR       = Op(15) // shr vx
	OP_SUBN      = Op(16) // subn vx, vy
	OP_SHL       = Op(17) // shl vx
	OP_SNE_REG   = Op(18) // sne vx, vy
	OP_LD_I      = Op(19) // ld i, addr
	OP_JP_V0     = Op(20) // jp v0, addr
	OP_RND       = Op(21) // rnd vx, byte
	OP_DRW       = Op(22) // drw vx, vy, nibble
	OP_SKP       = Op(23) // skp vx
	OP_SKNP      = Op(24) // sknp vx
	OP_LD_VX_DT  = Op(25) // ld vx, dt
	OP_LD_VX_K   = Op(26) // ld vx, k
	OP_LD_DT_VX  = Op(27) // ld dt, vx
	OP_LD_ST_VX  = Op(28) // ld st, vx
	OP_ADD_I     = Op(29) // add i, vx
	OP_LD_F      = Op(30) // ld f, vx
	OP_LD_B      = Op(31) // ld b, vx
	OP_LD_MEM_VX = Op(32) // ld [i], vx
	OP_LD_VX_MEM = Op(33) // ld vx, [i]

	OP_COUNT = 34
)

// opForm matches an instruction word against mask and value.
type opForm struct {
	op    Op
	mask  uint16
	value uint16
}

// opForms is indexed by the high nibble of the instruction word.
var opForms = [16][]opForm{
	0x0: {
		{OP_CLS, 0xffff, 0x00e0},
		{OP_RET, 0xffff, 0x00ee},
	},
	0x1: {{OP_JP, 0xf000, 0x1000}},
	0x2: {{OP_CALL, 0xf000, 0x2000}},
	0x3: {{OP_SE_BYTE, 0xf000, 0x3000}},
	0x4: {{OP_SNE_BYTE, 0xf000, 0x4000}},
	0x5: {{OP_SE_REG, 0xf00f, 0x5000}},
	0x6: {{OP_LD_BYTE, 0xf000, 0x6000}},
	0x7: {{OP_ADD_BYTE, 0xf000, 0x7000}},
	0x8: {
		{OP_LD_REG, 0xf00f, 0x8000},
		{OP_OR, 0xf00f, 0x8001},
		{OP_AND, 0xf00f, 0x8002},
		{OP_XOR, 0xf00f, 0x8003},
		{OP_ADD_REG, 0xf00f, 0x8004},
		{OP_SUB, 0xf00f, 0x8005},
		{OP_SHR, 0xf00f, 0x8006},
		{OP_SUBN, 0xf00f, 0x8007},
		{OP_SHL, 0xf00f, 0x800e},
	},
	0x9: {{OP_SNE_REG, 0xf00f, 0x9000}},
	0xa: {{OP_LD_I, 0xf000, 0xa000}},
	0xb: {{OP_JP_V0, 0xf000, 0xb000}},
	0xc: {{OP_RND, 0xf000, 0xc000}},
	0xd: {{OP_DRW, 0xf000, 0xd000}},
	0xe: {
		{OP_SKP, 0xf0ff, 0xe09e},
		{OP_SKNP, 0xf0ff, 0xe0a1},
	},
	0xf: {
		{OP_LD_VX_DT, 0xf0ff, 0xf007},
		{OP_LD_VX_K, 0xf0ff, 0xf00a},
		{OP_LD_DT_VX, 0xf0ff, 0xf015},
		{OP_LD_ST_VX, 0xf0ff, 0xf018},
		{OP_ADD_I, 0xf0ff, 0xf01e},
		{OP_LD_F, 0xf0ff, 0xf029},
		{OP_LD_B, 0xf0ff, 0xf033},
		{OP_LD_MEM_VX, 0xf0ff, 0xf055},
		{OP_LD_VX_MEM, 0xf0ff, 0xf065},
	},
}

// opBase is the fixed bits of each form, used when encoding.
var opBase [OP_COUNT]uint16

func init() {
	for _, forms := range opForms {
		for _, form := range forms {
			opBase[form.op] = form.value
		}
	}
}

// Nibbles splits a word into its four nibbles, most significant first.
func Nibbles(word uint16) (n [4]uint8) {
	n[0] = uint8(word>>12) & 0xf
	n[1] = uint8(word>>8) & 0xf
	n[2] = uint8(word>>4) & 0xf
	n[3] = uint8(word>>0) & 0xf
	return
}

// Instruction is a decoded instruction word.
type Instruction struct {
	Op   Op
	Word uint16
}

// Decode classifies an instruction word into one of the instruction forms.
func Decode(word uint16) (ins Instruction, err error) {
	for _, form := range opForms[word>>12] {
		if word&form.mask == form.value {
			ins = Instruction{Op: form.op, Word: word}
			return
		}
	}

	err = ErrOpcode(word)
	return
}

// X is the register index in the second nibble.
func (ins Instruction) X() uint8 {
	return uint8(ins.Word>>8) & 0xf
}

// Y is the register index in the third nibble.
func (ins Instruction) Y() uint8 {
	return uint8(ins.Word>>4) & 0xf
}

// N is the sprite height in the fourth nibble.
func (ins Instruction) N() uint8 {
	return uint8(ins.Word) & 0xf
}

// KK is the byte in the low two nibbles.
func (ins Instruction) KK() uint8 {
	return uint8(ins.Word)
}

// NNN is the 12-bit address in the low three nibbles.
func (ins Instruction) NNN() uint16 {
	return ins.Word & 0xfff
}

// IsCall returns true if the instruction is a subroutine call.
func (ins Instruction) IsCall() bool {
	return ins.Op == OP_CALL
}

// IsJump returns true if the instruction unconditionally changes the PC.
func (ins Instruction) IsJump() bool {
	return ins.Op == OP_JP || ins.Op == OP_JP_V0
}

// IsReturn returns true if the instruction returns from a subroutine.
func (ins Instruction) IsReturn() bool {
	return ins.Op == OP_RET
}

// IsSkip returns true if the instruction conditionally skips the next one.
func (ins Instruction) IsSkip() bool {
	switch ins.Op {
	case OP_SE_BYTE, OP_SNE_BYTE, OP_SE_REG, OP_SNE_REG, OP_SKP, OP_SKNP:
		return true
	}
	return false
}

// MakeCode encodes an instruction form with its operand fields.
// Fields that the form does not use are ignored.
func MakeCode(op Op, x, y, n uint8, nnn uint16) uint16 {
	word := opBase[op]

	switch op {
	case OP_CLS, OP_RET:
	case OP_JP, OP_CALL, OP_LD_I, OP_JP_V0:
		word |= nnn & 0xfff
	case OP_SE_BYTE, OP_SNE_BYTE, OP_LD_BYTE, OP_ADD_BYTE, OP_RND:
		word |= uint16(x&0xf)<<8 | nnn&0xff
	case OP_DRW:
		word |= uint16(x&0xf)<<8 | uint16(y&0xf)<<4 | uint16(n&0xf)
	case OP_SKP, OP_SKNP, OP_LD_VX_DT, OP_LD_VX_K, OP_LD_DT_VX, OP_LD_ST_VX,
		OP_ADD_I, OP_LD_F, OP_LD_B, OP_LD_MEM_VX, OP_LD_VX_MEM:
		// Low byte is part of the opcode.
		word |= uint16(x&0xf) << 8
	default:
		// Register pairs: 5xy0, 8xyN, 9xy0.
		word |= uint16(x&0xf)<<8 | uint16(y&0xf)<<4
	}

	return word
}

// String returns the assembly language representation of this instruction.
func (ins Instruction) String() (out string) {
	if !ins.Valid() {
		out = fmt.Sprintf(".dw 0x%04x", ins.Word)
		return
	}

	x, y := ins.X(), ins.Y()

	switch ins.Op {
	case OP_CLS, OP_RET:
		out = ins.Op.String()
	case OP_JP, OP_CALL:
		out = fmt.Sprintf("%v 0x%03x", mnemonic[ins.Op], ins.NNN())
	case OP_LD_I:
		out = fmt.Sprintf("ld i, 0x%03x", ins.NNN())
	case OP_JP_V0:
		out = fmt.Sprintf("jp v0, 0x%03x", ins.NNN())
	case OP_SE_BYTE, OP_SNE_BYTE, OP_LD_BYTE, OP_ADD_BYTE, OP_RND:
		out = fmt.Sprintf("%v v%x, 0x%02x", mnemonic[ins.Op], x, ins.KK())
	case OP_SHR, OP_SHL:
		// vy is ignored, and only shown when set.
		out = fmt.Sprintf("%v v%x", mnemonic[ins.Op], x)
		if y != 0 {
			out += fmt.Sprintf(", v%x", y)
		}
	case OP_SKP, OP_SKNP:
		out = fmt.Sprintf("%v v%x", mnemonic[ins.Op], x)
	case OP_DRW:
		out = fmt.Sprintf("drw v%x, v%x, %d", x, y, ins.N())
	case OP_LD_VX_DT:
		out = fmt.Sprintf("ld v%x, dt", x)
	case OP_LD_VX_K:
		out = fmt.Sprintf("ld v%x, k", x)
	case OP_LD_DT_VX:
		out = fmt.Sprintf("ld dt, v%x", x)
	case OP_LD_ST_VX:
		out = fmt.Sprintf("ld st, v%x", x)
	case OP_ADD_I:
		out = fmt.Sprintf("add i, v%x", x)
	case OP_LD_F:
		out = fmt.Sprintf("ld f, v%x", x)
	case OP_LD_B:
		out = fmt.Sprintf("ld b, v%x", x)
	case OP_LD_MEM_VX:
		out = fmt.Sprintf("ld [i], v%x", x)
	case OP_LD_VX_MEM:
		out = fmt.Sprintf("ld v%x, [i]", x)
	default:
		out = fmt.Sprintf("%v v%x, v%x", mnemonic[ins.Op], x, y)
	}

	return
}

// mnemonic is the leading word of each form.
var mnemonic = [OP_COUNT]string{
	OP_CLS:       "cls",
	OP_RET:       "ret",
	OP_JP:        "jp",
	OP_CALL:      "call",
	OP_SE_BYTE:   "se",
	OP_SNE_BYTE:  "sne",
	OP_SE_REG:    "se",
	OP_LD_BYTE:   "ld",
	OP_ADD_BYTE:  "add",
	OP_LD_REG:    "ld",
	OP_OR:        "or",
	OP_AND:       "and",
	OP_XOR:       "xor",
	OP_ADD_REG:   "add",
	OP_SUB:       "sub",
	OP_SHR:       "shr",
	OP_SUBN:      "subn",
	OP_SHL:       "shl",
	OP_SNE_REG:   "sne",
	OP_LD_I:      "ld",
	OP_JP_V0:     "jp",
	OP_RND:       "rnd",
	OP_DRW:       "drw",
	OP_SKP:       "skp",
	OP_SKNP:      "sknp",
	OP_LD_VX_DT:  "ld",
	OP_LD_VX_K:   "ld",
	OP_LD_DT_VX:  "ld",
	OP_LD_ST_VX:  "ld",
	OP_ADD_I:     "add",
	OP_LD_F:      "ld",
	OP_LD_B:      "ld",
	OP_LD_MEM_VX: "ld",
	OP_LD_VX_MEM: "ld",
}
