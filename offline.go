package polymidi

import (
	"errors"
	"io"
	"slices"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	intaudio "github.com/cbegin/polymidi-go/internal/audio"
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/render"
)

var ErrNegativeDuration = errors.New("duration must not be negative")

// TimedMessage is raw MIDI input scheduled at an offset from the start of a
// render.
type TimedMessage struct {
	At    time.Duration
	Bytes []byte
}

// RenderOffline runs the full pipeline without an audio device. Messages are
// written to the engine's input at the first block boundary at or after
// their offset, which is the same granularity live input gets. It returns
// interleaved stereo samples.
func RenderOffline(cfg *config.Config, msgs []TimedMessage, seconds float64, opts ...Option) ([]float32, error) {
	if seconds < 0 {
		return nil, ErrNegativeDuration
	}
	engine, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	synth := NewSynth(engine, render.DefaultParams())
	in := engine.Input()

	pending := slices.Clone(msgs)
	slices.SortStableFunc(pending, func(a, b TimedMessage) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})

	frames := int(float64(cfg.SampleRate) * seconds)
	out := make([]float32, frames*2)
	block := cfg.BlockSize
	for f := 0; f < frames; f += block {
		at := time.Duration(float64(f) / float64(cfg.SampleRate) * float64(time.Second))
		for len(pending) > 0 && pending[0].At <= at {
			if _, err := in.Write(pending[0].Bytes); err != nil {
				return nil, err
			}
			pending = pending[1:]
		}
		n := min(block, frames-f)
		synth.Process(out[f*2 : (f+n)*2])
	}
	return out, nil
}

// sampleSlice replays a rendered buffer as a SampleSource.
type sampleSlice struct {
	data []float32
	pos  int
}

func (s *sampleSlice) Process(dst []float32) {
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	clear(dst[n:])
}

// EncodeWAV writes interleaved stereo samples as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
	stream := intaudio.NewStreamer(&sampleSlice{data: samples}, len(samples)/2)
	return wav.Encode(w, stream, format)
}
