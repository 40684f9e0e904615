package cpu

// Audio is the sound trigger driven by the sound timer.
// The implementation owns tone generation; the interpreter only
// starts and stops it.
type Audio interface {
	// Play starts the tone.
	Play()
	// Stop silences the tone.
	Stop()
	// IsPlaying reports whether the tone is active.
	IsPlaying() bool
}
