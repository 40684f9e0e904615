package frontend

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrNoWindow       = errors.New(f("window output not available"))
	ErrNotTerminal    = errors.New(f("input is not a terminal"))
	ErrTerminalSize   = errors.New(f("terminal too small"))
	ErrKeyUnsupported = errors.New(f("key has no window binding"))
)
