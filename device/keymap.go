package device

import (
	"unicode"

	"github.com/ezrec/chip8/cpu"
)

// Keymap maps physical key characters to logical keys.
type Keymap map[rune]uint8

// DEFAULT_KEYS lists the physical key for logical keys 0 through F,
// laid out so 1234/QWER/ASDF/ZXCV mirror the hexadecimal keypad.
const DEFAULT_KEYS = "x123qweasdzc4rfv"

// DefaultKeymap is the keymap of DEFAULT_KEYS.
var DefaultKeymap, _ = ParseKeymap(DEFAULT_KEYS)

// ParseKeymap builds a keymap from the 16 physical keys for
// logical keys 0 through F, in order.
func ParseKeymap(keys string) (km Keymap, err error) {
	runes := []rune(keys)
	if len(runes) != cpu.KEY_COUNT {
		err = ErrKeymapLength
		return
	}

	km = make(Keymap, cpu.KEY_COUNT)
	for n, r := range runes {
		r = unicode.ToLower(r)
		if _, ok := km[r]; ok {
			km = nil
			err = ErrKeymapRepeat
			return
		}
		km[r] = uint8(n)
	}

	return
}

// Lookup returns the logical key for a physical key, ignoring case.
func (km Keymap) Lookup(r rune) (key uint8, ok bool) {
	key, ok = km[unicode.ToLower(r)]
	return
}

// Runes returns the physical key of each logical key.
func (km Keymap) Runes() (runes [cpu.KEY_COUNT]rune) {
	for r, key := range km {
		runes[key] = r
	}
	return
}
