// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = func() (equ map[string]string) {
	equ = maps.Clone(_cpu_defines)
	equ["LINENO"] = "0"
	return
}()

// Assembler is a single pass macro assembler for CHIP-8 programs.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.

	expansions int // Count of macro expansions, for unique '@' labels.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int, err error) {
	if len(word) == 0 {
		err = ErrParseNumber(word)
		return
	}
	if word[0] == '\'' {
		// Character quotes should have been expanded into
		// values in parseLine()
		err = ErrParseCharacter(word)
		return
	}
	v64, err := strconv.ParseInt(strings.ReplaceAll(word, "_", ""), 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int(v64)
	return
}

// register returns the index of a v0-vf register name.
func register(word string) (index uint8, ok bool) {
	word = strings.ToLower(word)
	if len(word) != 2 || word[0] != 'v' {
		return
	}

	v, err := strconv.ParseUint(word[1:], 16, 4)
	if err != nil {
		return
	}

	return uint8(v), true
}

// reg decodes a required register operand.
func (asm *Assembler) reg(word string) (index uint8, err error) {
	index, ok := register(word)
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// byteOf decodes an 8-bit operand, accepting signed or unsigned values.
func (asm *Assembler) byteOf(word string) (value uint8, err error) {
	v, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v < -0x80 || v > 0xff {
		err = ErrValueRange
		return
	}

	value = uint8(v)
	return
}

// nibbleOf decodes a 4-bit operand.
func (asm *Assembler) nibbleOf(word string) (value uint8, err error) {
	v, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if v < 0 || v > 0xf {
		err = ErrValueRange
		return
	}

	value = uint8(v)
	return
}

// addressOf decodes a 12-bit operand. Words that are neither numbers nor
// equates are returned as labels, to be linked after parsing.
func (asm *Assembler) addressOf(word string) (addr uint16, label string, err error) {
	v, err := asm.valueOf(word)
	if err != nil {
		if isIdentifier(word) {
			label = word
			err = nil
		}
		return
	}
	if v < 0 || v > 0xfff {
		err = ErrValueRange
		return
	}

	addr = uint16(v)
	return
}

// isIdentifier returns true for words usable as labels.
func isIdentifier(word string) bool {
	for n, r := range word {
		switch {
		case r == '_' || r == '.' || unicode.IsLetter(r):
		case n > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return len(word) > 0
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var equ int
		equ, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt(equ)
	}
	for key, addr := range asm.Label {
		if _, ok := pred[key]; !ok {
			pred[key] = starlark.MakeInt(addr)
		}
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}

// splitWords splits a line on spaces, tabs and commas.
func splitWords(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// parseLine parses a single line as an opcode.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "0":
				str = "\x00"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = splitWords(line)

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = words[1+n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansions++
		unique := fmt.Sprintf("%v_%v_", name, asm.expansions)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", unique)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the load address of the next opcode.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return PROGRAM_START
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return last.Addr + len(last.Bytes)
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Opcode = asm.Opcode[:0]
	asm.expansions = 0
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := splitWords(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	if asm.currentAddr() > MEMORY_SIZE {
		err = ErrProgramFull
		return
	}

	// Final linking of labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			lineno = op.LineNo
			line = strings.Join(op.Words, " ")
			err = ErrLabelMissing(label)
			return
		}
		if len(op.Bytes) != 2 {
			log.Fatalf("Unable to link label '%s' to line %d: %v", label, op.LineNo, op.Words)
		}
		op.Bytes[0] |= uint8(addr>>8) & 0xf
		op.Bytes[1] |= uint8(addr)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var data []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || len(data) == 0 {
			return
		}
		opcode := Opcode{LineNo: lineno, Addr: asm.currentAddr(), Words: initial_words, Bytes: data, LinkLabel: label}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	code := func(word uint16) {
		data = append(data, uint8(word>>8), uint8(word))
	}

	name := strings.ToLower(words[0])
	args := slices.Clone(words[1:])
	for n, arg := range args {
		switch lower := strings.ToLower(arg); lower {
		case "i", "[i]", "dt", "st", "k", "f", "b":
			args[n] = lower
		}
	}

	want := func(count int) bool {
		switch {
		case len(args) < count:
			err = ErrOpcodeMissing
		case len(args) > count:
			err = ErrOpcodeExtraArgs
		}
		return err == nil
	}

	var x, y, n uint8
	var nnn uint16
	var kk uint8

	switch name {
	case ".db":
		if len(args) == 0 {
			err = ErrOpcodeMissing
			return
		}
		for _, arg := range args {
			var value uint8
			value, err = asm.byteOf(arg)
			if err != nil {
				return
			}
			data = append(data, value)
		}
	case ".dw":
		if len(args) == 0 {
			err = ErrOpcodeMissing
			return
		}
		for _, arg := range args {
			var value int
			value, err = asm.valueOf(arg)
			if err != nil {
				return
			}
			if value < -0x8000 || value > 0xffff {
				err = ErrValueRange
				return
			}
			code(uint16(value))
		}
	case "cls", "ret":
		if !want(0) {
			return
		}
		op := OP_CLS
		if name == "ret" {
			op = OP_RET
		}
		code(MakeCode(op, 0, 0, 0, 0))
	case "jp", "call":
		op := OP_JP
		if name == "call" {
			op = OP_CALL
		}
		if name == "jp" && len(args) == 2 {
			if r, ok := register(args[0]); !ok || r != 0 {
				err = ErrRegisterInvalid
				return
			}
			op = OP_JP_V0
			args = args[1:]
		}
		if !want(1) {
			return
		}
		nnn, label, err = asm.addressOf(args[0])
		if err != nil {
			return
		}
		code(MakeCode(op, 0, 0, 0, nnn))
	case "se", "sne":
		if !want(2) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		if r, ok := register(args[1]); ok {
			op := OP_SE_REG
			if name == "sne" {
				op = OP_SNE_REG
			}
			code(MakeCode(op, x, r, 0, 0))
			return
		}
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		op := OP_SE_BYTE
		if name == "sne" {
			op = OP_SNE_BYTE
		}
		code(MakeCode(op, x, 0, 0, uint16(kk)))
	case "add":
		if !want(2) {
			return
		}
		if args[0] == "i" {
			x, err = asm.reg(args[1])
			if err != nil {
				return
			}
			code(MakeCode(OP_ADD_I, x, 0, 0, 0))
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		if r, ok := register(args[1]); ok {
			code(MakeCode(OP_ADD_REG, x, r, 0, 0))
			return
		}
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		code(MakeCode(OP_ADD_BYTE, x, 0, 0, uint16(kk)))
	case "or", "and", "xor", "sub", "subn":
		if !want(2) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		y, err = asm.reg(args[1])
		if err != nil {
			return
		}
		op := map[string]Op{"or": OP_OR, "and": OP_AND, "xor": OP_XOR, "sub": OP_SUB, "subn": OP_SUBN}[name]
		code(MakeCode(op, x, y, 0, 0))
	case "shr", "shl":
		// shr vx {, vy}
		if len(args) == 1 {
			args = append(args, "v0")
		}
		if !want(2) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		y, err = asm.reg(args[1])
		if err != nil {
			return
		}
		op := OP_SHR
		if name == "shl" {
			op = OP_SHL
		}
		code(MakeCode(op, x, y, 0, 0))
	case "rnd":
		if !want(2) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		kk, err = asm.byteOf(args[1])
		if err != nil {
			return
		}
		code(MakeCode(OP_RND, x, 0, 0, uint16(kk)))
	case "drw":
		if !want(3) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		y, err = asm.reg(args[1])
		if err != nil {
			return
		}
		n, err = asm.nibbleOf(args[2])
		if err != nil {
			return
		}
		code(MakeCode(OP_DRW, x, y, n, 0))
	case "skp", "sknp":
		if !want(1) {
			return
		}
		x, err = asm.reg(args[0])
		if err != nil {
			return
		}
		op := OP_SKP
		if name == "sknp" {
			op = OP_SKNP
		}
		code(MakeCode(op, x, 0, 0, 0))
	case "ld":
		if !want(2) {
			return
		}
		dst, src := args[0], args[1]
		// ld <special>, vx
		special := map[string]Op{"dt": OP_LD_DT_VX, "st": OP_LD_ST_VX, "f": OP_LD_F, "b": OP_LD_B, "[i]": OP_LD_MEM_VX}
		if op, ok := special[dst]; ok {
			x, err = asm.reg(src)
			if err != nil {
				return
			}
			code(MakeCode(op, x, 0, 0, 0))
			return
		}
		if dst == "i" {
			nnn, label, err = asm.addressOf(src)
			if err != nil {
				return
			}
			code(MakeCode(OP_LD_I, 0, 0, 0, nnn))
			return
		}
		x, err = asm.reg(dst)
		if err != nil {
			return
		}
		switch src {
		case "dt":
			code(MakeCode(OP_LD_VX_DT, x, 0, 0, 0))
		case "k":
			code(MakeCode(OP_LD_VX_K, x, 0, 0, 0))
		case "[i]":
			code(MakeCode(OP_LD_VX_MEM, x, 0, 0, 0))
		default:
			if r, ok := register(src); ok {
				code(MakeCode(OP_LD_REG, x, r, 0, 0))
				return
			}
			kk, err = asm.byteOf(src)
			if err != nil {
				return
			}
			code(MakeCode(OP_LD_BYTE, x, 0, 0, uint16(kk)))
		}
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
