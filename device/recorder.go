package device

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ezrec/chip8/cpu"
)

// Recorder writes the buzzer to a 16-bit mono WAV stream, one timer
// tick of samples per Clock. A tick in which the trigger was active at
// any point is recorded as tone.
type Recorder struct {
	Null

	tone    Tone
	active  bool
	samples []float32
	enc     *wav.Encoder
	buf     *audio.IntBuffer
}

var _ cpu.Audio = (*Recorder)(nil)

// NewRecorder creates a recorder for a given timer tick rate.
func NewRecorder(out io.WriteSeeker, sampleRate int, tickRate int) (rec *Recorder) {
	perTick := sampleRate / tickRate

	rec = &Recorder{
		tone:    NewTone(sampleRate),
		samples: make([]float32, perTick),
		enc:     wav.NewEncoder(out, sampleRate, 16, 1, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: 16,
			Data:           make([]int, perTick),
		},
	}

	return
}

func (rec *Recorder) Play() {
	rec.Null.Play()
	rec.active = true
}

// Clock records one tick of samples.
func (rec *Recorder) Clock() (err error) {
	rec.tone.Fill(rec.samples, rec.active || rec.IsPlaying())
	rec.active = rec.IsPlaying()

	for n, sample := range rec.samples {
		rec.buf.Data[n] = int(sample * 0x7fff)
	}

	err = rec.enc.Write(rec.buf)
	return
}

// Close finalizes the WAV header.
func (rec *Recorder) Close() (err error) {
	rec.Stop()
	err = rec.enc.Close()
	return
}
