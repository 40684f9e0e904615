package cpu

// Keypad layout of the original hexadecimal keypad:
//
//	+---+---+---+---+
//	| 1 | 2 | 3 | C |
//	+---+---+---+---+
//	| 4 | 5 | 6 | D |
//	+---+---+---+---+
//	| 7 | 8 | 9 | E |
//	+---+---+---+---+
//	| A | 0 | B | F |
//	+---+---+---+---+
const (
	KEY_COUNT = 16 // Logical keys 0x0 through 0xF.
)

// Keypad holds the pressed state of each logical key.
type Keypad [KEY_COUNT]bool

// Pressed returns the state of key, using its low nibble.
func (kp *Keypad) Pressed(key uint8) bool {
	return kp[key&0xf]
}

// Set updates the state of key.
func (kp *Keypad) Set(key uint8, pressed bool) (err error) {
	if key >= KEY_COUNT {
		err = ErrKeyInvalid
		return
	}

	kp[key] = pressed
	return
}

// Reset releases every key.
func (kp *Keypad) Reset() {
	clear(kp[:])
}
