// Package voice implements the polyphonic voice table: a fixed array of slots
// that notes are allocated into, with note stealing once every slot is busy.
//
// All methods are meant for the render loop only. None of them allocate.
package voice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cbegin/polymidi-go/internal/midi"
	"github.com/cbegin/polymidi-go/internal/smooth"
)

var (
	ErrNoVoices      = errors.New("voice count must be positive")
	ErrUnknownPolicy = errors.New("unknown steal policy")
)

type State uint8

const (
	Idle State = iota
	Active
	Releasing
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Releasing:
		return "releasing"
	default:
		return "idle"
	}
}

// StealPolicy decides which busy slot a new note takes when no slot is idle.
type StealPolicy int

const (
	// StealReleasingFirst reuses the oldest releasing slot before touching
	// any active one, then steals the oldest active slot.
	StealReleasingFirst StealPolicy = iota
	// StealOldest takes the oldest busy slot, releasing or not.
	StealOldest
)

func (p StealPolicy) String() string {
	switch p {
	case StealOldest:
		return "oldest"
	default:
		return "releasing-first"
	}
}

func ParsePolicy(name string) (StealPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "releasing-first":
		return StealReleasingFirst, nil
	case "oldest":
		return StealOldest, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected releasing-first|oldest)", ErrUnknownPolicy, name)
	}
}

type Config struct {
	SampleRate int
	// AmpRamp is the attack/release ramp applied to voice amplitude.
	AmpRamp time.Duration
	// PitchRamp glides pitch on retargets of a sounding voice. A freshly
	// triggered voice always jumps straight to its note.
	PitchRamp time.Duration
	Policy    StealPolicy
}

// Voice is one slot of the table.
type Voice struct {
	Slot        int
	Note        uint8
	HasNote     bool
	Velocity    uint8
	State       State
	ActivatedAt uint64

	Amp   smooth.Param
	Pitch smooth.Param
}

type Table struct {
	voices []Voice
	clock  uint64
	policy StealPolicy
	steals uint64
}

// New allocates count slots. The slice is never resized afterwards.
func New(count int, cfg Config) (*Table, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoVoices, count)
	}
	t := &Table{
		voices: make([]Voice, count),
		policy: cfg.Policy,
	}
	for i := range t.voices {
		t.voices[i] = Voice{
			Slot:  i,
			Amp:   smooth.New(cfg.AmpRamp, cfg.SampleRate),
			Pitch: smooth.New(cfg.PitchRamp, cfg.SampleRate),
		}
	}
	return t, nil
}

// Allocate assigns note to a slot and returns the slot index. The activation
// stamp is the table's event counter.
func (t *Table) Allocate(note, velocity uint8) int {
	return t.AllocateAt(note, velocity, t.clock)
}

// AllocateAt is Allocate with a caller-supplied activation stamp. Notes with
// equal stamps are equally old; the quieter one is stolen first.
func (t *Table) AllocateAt(note, velocity uint8, stamp uint64) int {
	note = clamp7(note)
	velocity = clamp7(velocity)

	slot := t.pick(note)
	v := &t.voices[slot]
	if v.State != Idle && !(v.State == Active && v.Note == note) {
		t.steals++
	}
	if stamp >= t.clock {
		t.clock = stamp + 1
	}

	v.State = Active
	v.Note = note
	v.HasNote = true
	v.Velocity = velocity
	v.ActivatedAt = stamp
	v.Amp.Jump(0)
	v.Amp.SetTarget(midi.VelocityToGain(velocity))
	v.Pitch.Jump(midi.NoteToFreq(note))
	return slot
}

func (t *Table) pick(note uint8) int {
	for i := range t.voices {
		if v := &t.voices[i]; v.State == Active && v.Note == note {
			return i
		}
	}
	for i := range t.voices {
		if t.voices[i].State == Idle {
			return i
		}
	}
	if t.policy == StealReleasingFirst {
		if i := t.oldest(func(s State) bool { return s == Releasing }); i >= 0 {
			return i
		}
		return t.oldest(func(s State) bool { return s == Active })
	}
	return t.oldest(func(s State) bool { return s != Idle })
}

// oldest returns the matching slot with the smallest activation stamp, ties
// going to the lower velocity and then the lower slot, or -1.
func (t *Table) oldest(match func(State) bool) int {
	best := -1
	for i := range t.voices {
		v := &t.voices[i]
		if !match(v.State) {
			continue
		}
		if best < 0 || older(v, &t.voices[best]) {
			best = i
		}
	}
	return best
}

func older(a, b *Voice) bool {
	if a.ActivatedAt != b.ActivatedAt {
		return a.ActivatedAt < b.ActivatedAt
	}
	return a.Velocity < b.Velocity
}

// Release moves every active slot playing note to Releasing and returns how
// many it touched. The slot goes idle once the consumer calls Finish.
func (t *Table) Release(note uint8) int {
	note = clamp7(note)
	n := 0
	for i := range t.voices {
		v := &t.voices[i]
		if v.State == Active && v.Note == note {
			v.State = Releasing
			n++
		}
	}
	return n
}

// ReleaseAll moves every active slot to Releasing.
func (t *Table) ReleaseAll() int {
	n := 0
	for i := range t.voices {
		if t.voices[i].State == Active {
			t.voices[i].State = Releasing
			n++
		}
	}
	return n
}

// Finish marks a releasing slot idle. The DSP side calls it when the
// slot's release has fully decayed.
func (t *Table) Finish(slot int) bool {
	if slot < 0 || slot >= len(t.voices) {
		return false
	}
	v := &t.voices[slot]
	if v.State != Releasing {
		return false
	}
	v.State = Idle
	v.HasNote = false
	v.Amp.Jump(0)
	return true
}

// Reset silences every slot immediately.
func (t *Table) Reset() {
	for i := range t.voices {
		v := &t.voices[i]
		v.State = Idle
		v.HasNote = false
		v.Amp.Jump(0)
	}
}

// Advance steps the amplitude and pitch smoothers of every busy slot.
func (t *Table) Advance() {
	for i := range t.voices {
		v := &t.voices[i]
		if v.State == Idle {
			continue
		}
		v.Amp.Advance()
		v.Pitch.Advance()
	}
}

func (t *Table) Voice(slot int) *Voice {
	return &t.voices[slot]
}

func (t *Table) Len() int {
	return len(t.voices)
}

// Count returns how many slots are in state s.
func (t *Table) Count(s State) int {
	n := 0
	for i := range t.voices {
		if t.voices[i].State == s {
			n++
		}
	}
	return n
}

// Busy returns the number of non-idle slots.
func (t *Table) Busy() int {
	return len(t.voices) - t.Count(Idle)
}

// ActiveNotes appends the notes of active slots to dst in slot order.
func (t *Table) ActiveNotes(dst []uint8) []uint8 {
	for i := range t.voices {
		if t.voices[i].State == Active {
			dst = append(dst, t.voices[i].Note)
		}
	}
	return dst
}

// Steals counts allocations that took over a busy slot.
func (t *Table) Steals() uint64 {
	return t.steals
}

func (t *Table) Policy() StealPolicy {
	return t.policy
}

func clamp7(v uint8) uint8 {
	if v > 127 {
		return 127
	}
	return v
}
