package device

const (
	SAMPLE_RATE    = 44100 // Output sample rate.
	TONE_FREQUENCY = 440.0 // Buzzer pitch in Hz.
	TONE_VOLUME    = 0.25  // Buzzer amplitude, full scale is 1.0.
)

// Tone is a square wave generator.
type Tone struct {
	SampleRate int
	Frequency  float64
	Volume     float32

	phase float64
}

// NewTone creates the default buzzer tone at a sample rate.
func NewTone(sampleRate int) Tone {
	return Tone{
		SampleRate: sampleRate,
		Frequency:  TONE_FREQUENCY,
		Volume:     TONE_VOLUME,
	}
}

// Next returns the next sample, in the range [-Volume, Volume].
func (tn *Tone) Next() (sample float32) {
	sample = tn.Volume
	if tn.phase >= 0.5 {
		sample = -tn.Volume
	}

	tn.phase += tn.Frequency / float64(tn.SampleRate)
	for tn.phase >= 1.0 {
		tn.phase -= 1.0
	}

	return
}

// Fill writes the next len(samples) samples, or silence if not active.
// Silence resets the waveform so each beep starts on the same edge.
func (tn *Tone) Fill(samples []float32, active bool) {
	if !active {
		clear(samples)
		tn.phase = 0
		return
	}

	for n := range samples {
		samples[n] = tn.Next()
	}
}
