//go:build !headless

package device

import (
	"encoding/binary"
	"errors"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"github.com/ezrec/chip8/cpu"
)

// Beeper plays the buzzer tone on the host audio output.
type Beeper struct {
	Verbose bool

	ctx     *oto.Context
	player  *oto.Player
	playing atomic.Bool
	tone    Tone
	samples []float32
	mutex   sync.Mutex // Guards tone and samples, used from the oto goroutine.
}

var _ cpu.Audio = (*Beeper)(nil)

// NewBeeper opens the host audio output. Only one may exist per process.
func NewBeeper(sampleRate int) (bp *Beeper, err error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		err = errors.Join(ErrNoAudio, err)
		return
	}
	<-ready

	bp = &Beeper{
		ctx:  ctx,
		tone: NewTone(sampleRate),
	}

	bp.player = ctx.NewPlayer(bp)
	bp.player.Play()

	return
}

// Read renders float32 little-endian samples for the oto player.
func (bp *Beeper) Read(p []byte) (n int, err error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	count := len(p) / 4
	if len(bp.samples) < count {
		bp.samples = make([]float32, count)
	}
	samples := bp.samples[:count]

	bp.tone.Fill(samples, bp.playing.Load())

	for i, sample := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(sample))
	}

	n = count * 4
	return
}

func (bp *Beeper) Play() {
	if !bp.playing.Swap(true) && bp.Verbose {
		log.Printf("beeper: on")
	}
}

func (bp *Beeper) Stop() {
	if bp.playing.Swap(false) && bp.Verbose {
		log.Printf("beeper: off")
	}
}

func (bp *Beeper) IsPlaying() bool {
	return bp.playing.Load()
}

// Close releases the player.
func (bp *Beeper) Close() (err error) {
	bp.Stop()
	if bp.player != nil {
		err = bp.player.Close()
		bp.player = nil
	}
	return
}
