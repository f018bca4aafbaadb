package audio

import (
	"github.com/gopxl/beep"
)

// Streamer exposes a SampleSource as a beep.Streamer so it can be mixed,
// resampled or encoded with the beep toolkit. Frames is the total length
// to produce; zero streams forever.
type Streamer struct {
	source SampleSource
	buf    []float32
	left   int
	bound  bool
}

func NewStreamer(source SampleSource, frames int) *Streamer {
	return &Streamer{source: source, left: frames, bound: frames > 0}
}

func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	n := len(samples)
	if s.bound {
		if s.left <= 0 {
			return 0, false
		}
		if n > s.left {
			n = s.left
		}
	}
	if fs, ok := s.source.(FinishingSource); ok && fs.Finished() {
		return 0, false
	}
	need := n * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	s.buf = s.buf[:need]
	s.source.Process(s.buf)
	for i := 0; i < n; i++ {
		samples[i][0] = float64(s.buf[2*i])
		samples[i][1] = float64(s.buf[2*i+1])
	}
	if s.bound {
		s.left -= n
	}
	return n, true
}

func (s *Streamer) Err() error { return nil }

var _ beep.Streamer = (*Streamer)(nil)
