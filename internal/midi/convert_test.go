package midi

import (
	"math"
	"testing"
)

func TestNoteToFreqA4(t *testing.T) {
	if got := NoteToFreq(69); math.Abs(float64(got)-440) > 0.01 {
		t.Fatalf("A4 = %f, want 440", got)
	}
	if got := NoteToFreq(81); math.Abs(float64(got)-880) > 0.01 {
		t.Fatalf("A5 = %f, want 880", got)
	}
}

func TestVelocityToGainCurve(t *testing.T) {
	if got := VelocityToGain(0); got != 0 {
		t.Fatalf("velocity 0 gain = %f, want 0", got)
	}
	if got := VelocityToGain(127); math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("velocity 127 gain = %f, want 1", got)
	}
	if got := VelocityToGain(64); math.Abs(float64(got)-0.25) > 0.01 {
		t.Fatalf("velocity 64 gain = %f, want ~0.25", got)
	}
}

func TestPitchBendToRatio(t *testing.T) {
	if got := PitchBendToRatio(BendCentre, DefaultBendRange); math.Abs(float64(got)-1) > 1e-6 {
		t.Fatalf("centre ratio = %f, want 1", got)
	}
	wantMin := math.Pow(2, -2.0/12)
	if got := PitchBendToRatio(0, DefaultBendRange); math.Abs(float64(got)-wantMin) > 0.001 {
		t.Fatalf("min ratio = %f, want %f", got, wantMin)
	}
	wantMax := math.Pow(2, 2.0/12)
	if got := PitchBendToRatio(16383, DefaultBendRange); math.Abs(float64(got)-wantMax) > 0.001 {
		t.Fatalf("max ratio = %f, want %f", got, wantMax)
	}
}
