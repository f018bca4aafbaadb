package midi

import "math"

// DefaultBendRange is the pitch bend range in semitones either side of centre.
const DefaultBendRange = 2.0

// NoteToFreq converts a MIDI note number to Hz with A4 (69) = 440 Hz.
func NoteToFreq(note uint8) float32 {
	return float32(440 * math.Pow(2, (float64(note)-69)/12))
}

// VelocityToGain maps velocity onto a squared curve, 0 -> 0 and 127 -> 1.
func VelocityToGain(velocity uint8) float32 {
	v := float32(clamp7(velocity)) / maxData7
	return v * v
}

// PitchBendToRatio converts a raw 14-bit bend into a frequency ratio.
// semitones is the bend range at full deflection.
func PitchBendToRatio(bend int16, semitones float64) float32 {
	offset := (float64(bend) - BendCentre) / BendCentre
	return float32(math.Pow(2, offset*semitones/12))
}
