package lfo

import (
	"fmt"
	"math"
	"strings"
)

type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
)

func (s Shape) String() string {
	switch s {
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	case Saw:
		return "saw"
	default:
		return "sine"
	}
}

func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sine", "sin":
		return Sine, nil
	case "triangle", "tri":
		return Triangle, nil
	case "square", "sq":
		return Square, nil
	case "saw":
		return Saw, nil
	}
	return Sine, fmt.Errorf("unknown lfo shape %q", name)
}

// LFO is a free-running low-frequency oscillator. It is shared across all
// voices of a renderer, so every voice sees the same modulation phase.
type LFO struct {
	shape Shape
	inc   float64 // phase increment per sample
	phase float64 // [0, 1)
}

func New(shape Shape, rateHz float64, sampleRate int) LFO {
	l := LFO{shape: shape}
	l.SetRate(rateHz, sampleRate)
	return l
}

func (l *LFO) SetRate(rateHz float64, sampleRate int) {
	if rateHz <= 0 || sampleRate <= 0 {
		l.inc = 0
		return
	}
	l.inc = rateHz / float64(sampleRate)
}

// Next returns the current value in [-1, 1] and advances one sample.
func (l *LFO) Next() float32 {
	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case Saw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.inc
	for l.phase >= 1 {
		l.phase--
	}
	return float32(v)
}

// Running reports whether the rate is non-zero.
func (l *LFO) Running() bool {
	return l.inc != 0
}

func (l *LFO) Reset() {
	l.phase = 0
}
