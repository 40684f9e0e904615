// Package cpu implements the interpreter and assembler for the CHIP-8 system.
//
// The machine consists of 4KiB of memory holding the font table at 0x000 and
// the program image at 0x200, sixteen 8-bit registers (v0-vf) where vf doubles
// as the carry, borrow and collision flag, a 16-bit address register (I), the
// delay and sound timers, a 16 entry call stack, a 64x32 monochrome display,
// and a 16 key hexadecimal keypad.
//
// Each Tick fetches one big-endian instruction word at the program counter,
// decodes it into one of the 34 instruction forms, and executes it. Timers are
// decremented separately by the driver through TickDelay and TickSound.
//
// The assembler accepts the conventional mnemonic syntax, with labels,
// equates, macros, and compile-time expression evaluation.
package cpu
