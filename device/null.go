package device

import (
	"github.com/ezrec/chip8/cpu"
)

// Null is a silent sound trigger that only tracks its state.
type Null struct {
	Plays int // Count of Play transitions.
	Stops int // Count of Stop transitions.

	playing bool
}

var _ cpu.Audio = (*Null)(nil)

func (nl *Null) Play() {
	if !nl.playing {
		nl.Plays++
	}
	nl.playing = true
}

func (nl *Null) Stop() {
	if nl.playing {
		nl.Stops++
	}
	nl.playing = false
}

func (nl *Null) IsPlaying() bool {
	return nl.playing
}
