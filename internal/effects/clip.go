package effects

import "math"

// SoftClip bounds a stereo pair to (-1, 1) with tanh waveshaping. Drive
// scales the input first; 1 leaves quiet signals almost untouched.
type SoftClip struct {
	Drive float32
}

func NewSoftClip(drive float32) SoftClip {
	if drive <= 0 {
		drive = 1
	}
	return SoftClip{Drive: drive}
}

func (c SoftClip) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l * c.Drive)))
	r = float32(math.Tanh(float64(r * c.Drive)))
	return l, r
}
