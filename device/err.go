package device

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrNoAudio      = errors.New(f("audio output not available"))
	ErrKeymapLength = errors.New(f("keymap needs 16 keys"))
	ErrKeymapRepeat = errors.New(f("keymap repeats a key"))
)
