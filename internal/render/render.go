// Package render is a small reference synthesizer for the voice engine: one
// oscillator per slot through a resonant lowpass, with a shared vibrato LFO
// and master gain. It reads voice and parameter state and never mutates it.
package render

import (
	"math"

	"github.com/cbegin/polymidi-go/internal/effects"
	"github.com/cbegin/polymidi-go/internal/lfo"
	"github.com/cbegin/polymidi-go/internal/smooth"
	"github.com/cbegin/polymidi-go/internal/voice"
	"github.com/cbegin/polymidi-go/internal/wavetable"
)

// Source is the read-only view of engine state the renderer needs.
type Source interface {
	Voices() int
	Voice(i int) *voice.Voice
	Value(h smooth.Handle) float32
	BendRatio() float32
}

// NoParam marks a handle that the engine does not declare; the renderer
// then uses the parameter's default.
const NoParam smooth.Handle = -1

type Handles struct {
	Cutoff       smooth.Handle
	Resonance    smooth.Handle
	VibratoDepth smooth.Handle
	MasterGain   smooth.Handle
}

type Params struct {
	VibratoRate  float64 // Hz
	VibratoShape lfo.Shape
	// Vibrato depth 1.0 swings this many semitones either way.
	VibratoRange float64
	MixScale     float32 // per-voice headroom
	Drive        float32 // output soft clip drive
	// Wave replaces the naive saw oscillator when set.
	Wave *wavetable.Table
}

func DefaultParams() Params {
	return Params{
		VibratoRate:  5.5,
		VibratoShape: lfo.Sine,
		VibratoRange: 1,
		MixScale:     0.25,
		Drive:        1,
	}
}

const (
	defaultCutoff    = 8000
	defaultResonance = 0
	defaultGain      = 0.8
)

type Renderer struct {
	sampleRate float64
	sr         int
	params     Params
	handles    Handles
	vibrato    lfo.LFO
	clip       effects.SoftClip

	phases  []float64
	filters []effects.SVF
	stamps  []uint64
}

// New sizes per-slot state for voices slots.
func New(sampleRate, voices int, h Handles, params Params) *Renderer {
	return &Renderer{
		sampleRate: float64(sampleRate),
		sr:         sampleRate,
		params:     params,
		handles:    h,
		vibrato:    lfo.New(params.VibratoShape, params.VibratoRate, sampleRate),
		clip:       effects.NewSoftClip(params.Drive),
		phases:     make([]float64, voices),
		filters:    make([]effects.SVF, voices),
		stamps:     make([]uint64, voices),
	}
}

func value(src Source, h smooth.Handle, def float32) float32 {
	if h == NoParam {
		return def
	}
	return src.Value(h)
}

// Frame renders one stereo frame from the current state of src.
func (r *Renderer) Frame(src Source) (float32, float32) {
	f := effects.Coeff(value(src, r.handles.Cutoff, defaultCutoff), r.sr)
	damp := effects.Damping(value(src, r.handles.Resonance, defaultResonance))
	gain := value(src, r.handles.MasterGain, defaultGain)

	ratio := float64(src.BendRatio())
	mod := r.vibrato.Next()
	if depth := value(src, r.handles.VibratoDepth, 0); depth != 0 {
		ratio *= math.Exp2(float64(depth*mod) * r.params.VibratoRange / 12)
	}

	var mix float32
	n := src.Voices()
	if n > len(r.phases) {
		n = len(r.phases)
	}
	for i := 0; i < n; i++ {
		v := src.Voice(i)
		if v.State == voice.Idle {
			continue
		}
		if v.ActivatedAt != r.stamps[i] {
			// New note in this slot.
			r.stamps[i] = v.ActivatedAt
			r.phases[i] = 0
			r.filters[i].Reset()
		}
		ph := r.phases[i]
		osc := float32(2*ph - 1)
		if r.params.Wave != nil {
			osc = r.params.Wave.Lookup(ph)
		}
		ph += float64(v.Pitch.Current()) * ratio / r.sampleRate
		ph -= math.Floor(ph)
		r.phases[i] = ph
		mix += r.filters[i].Lowpass(osc, f, damp) * v.Amp.Current()
	}
	out := mix * r.params.MixScale * gain
	return r.clip.Process(out, out)
}

// Reset clears oscillator and filter state.
func (r *Renderer) Reset() {
	for i := range r.phases {
		r.phases[i] = 0
		r.filters[i].Reset()
		r.stamps[i] = 0
	}
	r.vibrato.Reset()
}
