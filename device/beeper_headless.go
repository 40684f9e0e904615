//go:build headless

package device

// Beeper is unavailable in headless builds.
type Beeper struct {
	Null
	Verbose bool
}

// NewBeeper always fails in headless builds.
func NewBeeper(sampleRate int) (bp *Beeper, err error) {
	err = ErrNoAudio
	return
}

func (bp *Beeper) Close() (err error) {
	return
}
