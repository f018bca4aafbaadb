package smooth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicateParam = errors.New("duplicate parameter")
	ErrEmptyName      = errors.New("parameter name is empty")
)

// Handle indexes a parameter inside a Bank.
type Handle int

// Bank holds the global smoothed parameters. Parameters are added during
// setup; after that the slice never grows, so Advance and Param are safe to
// call from the render loop.
type Bank struct {
	sampleRate int
	names      []string
	params     []Param
}

func NewBank(sampleRate int) *Bank {
	return &Bank{sampleRate: sampleRate}
}

// Add registers a parameter starting at initial.
func (b *Bank) Add(name string, initial float32, ramp time.Duration) (Handle, error) {
	if name == "" {
		return -1, ErrEmptyName
	}
	if _, ok := b.Lookup(name); ok {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateParam, name)
	}
	p := New(ramp, b.sampleRate)
	p.Jump(initial)
	b.names = append(b.names, name)
	b.params = append(b.params, p)
	return Handle(len(b.params) - 1), nil
}

func (b *Bank) Lookup(name string) (Handle, bool) {
	for i, n := range b.names {
		if n == name {
			return Handle(i), true
		}
	}
	return -1, false
}

func (b *Bank) Param(h Handle) *Param {
	return &b.params[h]
}

// Value returns the current smoothed value of h.
func (b *Bank) Value(h Handle) float32 {
	return b.params[h].current
}

func (b *Bank) Name(h Handle) string {
	return b.names[h]
}

func (b *Bank) Len() int {
	return len(b.params)
}

// Advance steps every parameter once.
func (b *Bank) Advance() {
	for i := range b.params {
		b.params[i].Advance()
	}
}
