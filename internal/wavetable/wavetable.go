// Package wavetable holds single-cycle waveforms for the reference renderer.
package wavetable

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

const twoPi = math.Pi * 2

const (
	MinLen     = 2
	MaxLen     = 4096
	builtinLen = 256
)

var (
	ErrLength       = errors.New("wavetable length out of range")
	ErrUnknownShape = errors.New("unknown waveform")
)

// Table is one cycle of a waveform. Read it with a phase in [0, 1).
type Table struct {
	samples []float32
}

func New(samples []float32) (*Table, error) {
	if len(samples) < MinLen || len(samples) > MaxLen {
		return nil, fmt.Errorf("%w: %d samples", ErrLength, len(samples))
	}
	return &Table{samples: append([]float32(nil), samples...)}, nil
}

// ParseHex reads pairs of hex digits as signed 8-bit samples, the format
// trackers use for short chip waveforms. Whitespace is ignored.
func ParseHex(s string) (*Table, error) {
	data, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(data))
	for i, b := range data {
		out[i] = float32(int8(b)) / 127
	}
	return New(out)
}

// Builtin returns a band-unlimited table for sine, triangle, square or saw.
func Builtin(name string) (*Table, error) {
	var f func(p float64) float64
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		f = func(p float64) float64 { return math.Sin(twoPi * p) }
	case "triangle", "tri":
		f = func(p float64) float64 { return 1 - 4*math.Abs(p-0.5) }
	case "square", "sq":
		f = func(p float64) float64 {
			if p < 0.5 {
				return 1
			}
			return -1
		}
	case "saw":
		f = func(p float64) float64 { return 2*p - 1 }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, name)
	}
	s := make([]float32, builtinLen)
	for i := range s {
		s[i] = float32(f(float64(i) / builtinLen))
	}
	return &Table{samples: s}, nil
}

// Lookup interpolates linearly between adjacent samples. phase is taken
// modulo 1.
func (t *Table) Lookup(phase float64) float32 {
	n := len(t.samples)
	pos := (phase - math.Floor(phase)) * float64(n)
	idx := math.Floor(pos)
	frac := float32(pos - idx)
	i0 := int(idx) % n
	i1 := (i0 + 1) % n
	return t.samples[i0]*(1-frac) + t.samples[i1]*frac
}

func (t *Table) Len() int {
	return len(t.samples)
}
