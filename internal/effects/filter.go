package effects

import "math"

// SVF is a two-pole state variable filter (Chamberlin form). One instance
// holds the state for a single voice; the coefficients are shared and
// computed once per frame with Coeff and Damping.
type SVF struct {
	low  float32
	band float32
}

// maxCutoffRatio keeps the Chamberlin topology stable.
const maxCutoffRatio = 1.0 / 6

// Coeff returns the tuning coefficient for cutoff Hz at sampleRate.
func Coeff(cutoff float32, sampleRate int) float32 {
	sr := float64(sampleRate)
	fc := float64(cutoff)
	if fc < 20 {
		fc = 20
	}
	if fc > sr*maxCutoffRatio {
		fc = sr * maxCutoffRatio
	}
	return float32(2 * math.Sin(math.Pi*fc/sr))
}

// Damping maps resonance in [0, 1] to the filter's damping term. 0 gives a
// Butterworth response, 1 is close to self-oscillation. The top of the range
// stays below the damping at which the filter goes unstable at the maximum
// cutoff.
func Damping(resonance float32) float32 {
	if resonance < 0 {
		resonance = 0
	}
	if resonance > 1 {
		resonance = 1
	}
	return math.Sqrt2 - (math.Sqrt2-minDamping)*resonance
}

const minDamping = 0.1

// Lowpass filters one sample.
func (s *SVF) Lowpass(x, f, damp float32) float32 {
	s.low += f * s.band
	high := x - s.low - damp*s.band
	s.band += f * high
	return s.low
}

func (s *SVF) Reset() {
	s.low = 0
	s.band = 0
}
