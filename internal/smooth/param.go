// Package smooth ramps parameter values linearly so that control changes do
// not produce audible steps.
package smooth

import (
	"math"
	"time"
)

// Param is a linearly smoothed value. SetTarget schedules a ramp from the
// current value; Advance moves one step along it. The ramp always lands
// exactly on the target and never passes it.
type Param struct {
	current   float32
	target    float32
	step      float32
	remaining uint32
	rampSteps uint32
}

// Steps converts a ramp duration into a number of frames at sampleRate.
func Steps(ramp time.Duration, sampleRate int) uint32 {
	if ramp <= 0 || sampleRate <= 0 {
		return 0
	}
	return uint32(math.Round(ramp.Seconds() * float64(sampleRate)))
}

func New(ramp time.Duration, sampleRate int) Param {
	return Param{rampSteps: Steps(ramp, sampleRate)}
}

// NewSteps builds a Param whose ramps take exactly steps advances.
func NewSteps(steps uint32) Param {
	return Param{rampSteps: steps}
}

// SetTarget replaces the pending target. The current value is untouched
// until the next Advance.
func (p *Param) SetTarget(v float32) {
	p.target = v
	if v == p.current {
		p.remaining = 0
		return
	}
	n := p.rampSteps
	if n == 0 {
		n = 1
	}
	p.remaining = n
	p.step = (v - p.current) / float32(n)
}

// Advance moves current one step toward target and returns it.
func (p *Param) Advance() float32 {
	if p.remaining == 0 {
		return p.current
	}
	p.remaining--
	if p.remaining == 0 {
		p.current = p.target
		return p.current
	}
	next := p.current + p.step
	if (p.step > 0 && next >= p.target) || (p.step < 0 && next <= p.target) {
		next = p.target
		p.remaining = 0
	}
	p.current = next
	return next
}

// Jump sets current and target to v with no ramp.
func (p *Param) Jump(v float32) {
	p.current = v
	p.target = v
	p.remaining = 0
}

func (p *Param) Current() float32 { return p.current }
func (p *Param) Target() float32  { return p.target }

// Settled reports whether current has reached target.
func (p *Param) Settled() bool { return p.remaining == 0 }

// RampSteps returns the configured ramp length in frames.
func (p *Param) RampSteps() uint32 { return p.rampSteps }
