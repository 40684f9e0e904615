package cpu

import (
	"iter"
)

// Opcode represents a line of assembled code with its source location and generated bytes.
type Opcode struct {
	LineNo    int
	Addr      int
	Words     []string
	Bytes     []byte
	LinkLabel string
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Index int
}

// Debug finds the opcode covering a memory address.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if int(addr) >= op.Addr && int(addr) < op.Addr+len(op.Bytes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr) - op.Addr,
			}
			break
		}
	}

	return
}

// Binary returns the program image, to be loaded at PROGRAM_START.
func (prog *Program) Binary() (bins []byte) {
	for _, op := range prog.Opcodes {
		offset := op.Addr - PROGRAM_START
		if gap := offset - len(bins); gap > 0 {
			bins = append(bins, make([]byte, gap)...)
		}
		bins = append(bins[:offset], op.Bytes...)
	}

	return
}

// Disassemble decodes a program image two bytes at a time, yielding the
// load address of each word with its instruction. Words that are not
// instructions are yielded with Valid() false.
func Disassemble(rom []byte) iter.Seq2[uint16, Instruction] {
	return func(yield func(addr uint16, ins Instruction) bool) {
		for offset := 0; offset+1 < len(rom); offset += 2 {
			word := uint16(rom[offset])<<8 | uint16(rom[offset+1])
			ins, _ := Decode(word)
			ins.Word = word
			if !yield(uint16(PROGRAM_START+offset), ins) {
				return
			}
		}
	}
}

// Valid returns true if the instruction decodes to one of the forms.
func (ins Instruction) Valid() bool {
	_, err := Decode(ins.Word)
	return err == nil
}
