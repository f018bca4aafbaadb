// Package ccmap routes MIDI control changes to smoothed parameter targets
// through a static lookup table.
package ccmap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/multierr"

	"github.com/cbegin/polymidi-go/internal/smooth"
)

var (
	ErrUnknownParam = errors.New("unknown parameter")
	ErrInvalidCC    = errors.New("controller index out of range")
	ErrInvalidRange = errors.New("invalid range")
	ErrUnknownCurve = errors.New("unknown curve")
)

type Curve int

const (
	CurveLinear Curve = iota
	// CurveExponential sweeps min..max geometrically, which suits
	// frequencies. Both ends must be positive.
	CurveExponential
)

func (c Curve) String() string {
	if c == CurveExponential {
		return "exponential"
	}
	return "linear"
}

func ParseCurve(name string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "lin":
		return CurveLinear, nil
	case "exponential", "exp":
		return CurveExponential, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurve, name)
	}
}

// EntryConfig names one CC-to-parameter binding before it is resolved
// against a Bank.
type EntryConfig struct {
	CC    int
	Param string
	Min   float32
	Max   float32
	Curve Curve
}

// Entry is a resolved binding.
type Entry struct {
	Param smooth.Handle
	Min   float32
	Max   float32
	Curve Curve
}

// Scale maps a 7-bit controller value onto [Min, Max].
func (e Entry) Scale(value uint8) float32 {
	if value > 127 {
		value = 127
	}
	x := float64(value) / 127
	switch e.Curve {
	case CurveExponential:
		return float32(float64(e.Min) * math.Pow(float64(e.Max)/float64(e.Min), x))
	default:
		return e.Min + float32(x)*(e.Max-e.Min)
	}
}

// Mapping is the lookup table. It is read-only once built and may be shared.
type Mapping struct {
	entries [128][]Entry
}

// Build resolves every binding against bank. All problems are reported
// together.
func Build(cfgs []EntryConfig, bank *smooth.Bank) (*Mapping, error) {
	m := &Mapping{}
	var errs error
	for _, c := range cfgs {
		if c.CC < 0 || c.CC > 127 {
			errs = multierr.Append(errs, fmt.Errorf("%w: cc %d", ErrInvalidCC, c.CC))
			continue
		}
		h, ok := bank.Lookup(c.Param)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: cc %d -> %q", ErrUnknownParam, c.CC, c.Param))
			continue
		}
		if c.Curve == CurveExponential && (c.Min <= 0 || c.Max <= 0) {
			errs = multierr.Append(errs, fmt.Errorf("%w: cc %d exponential curve needs positive bounds, got %g..%g",
				ErrInvalidRange, c.CC, c.Min, c.Max))
			continue
		}
		m.entries[c.CC] = append(m.entries[c.CC], Entry{Param: h, Min: c.Min, Max: c.Max, Curve: c.Curve})
	}
	if errs != nil {
		return nil, errs
	}
	return m, nil
}

// Entries returns the bindings for a controller, or nil.
func (m *Mapping) Entries(cc uint8) []Entry {
	if cc > 127 {
		return nil
	}
	return m.entries[cc]
}

// Mapped lists the controllers that have at least one binding.
func (m *Mapping) Mapped() []int {
	var out []int
	for cc := range m.entries {
		if len(m.entries[cc]) > 0 {
			out = append(out, cc)
		}
	}
	return out
}

// Router applies control changes to a bank. It runs in the render context.
type Router struct {
	mapping *Mapping
	bank    *smooth.Bank
}

func NewRouter(m *Mapping, bank *smooth.Bank) *Router {
	return &Router{mapping: m, bank: bank}
}

// Route retargets every parameter mapped to index and reports how many it
// touched. Unmapped controllers are ignored.
func (r *Router) Route(index, value uint8) int {
	if index > 127 {
		index = 127
	}
	entries := r.mapping.entries[index]
	for _, e := range entries {
		r.bank.Param(e.Param).SetTarget(e.Scale(value))
	}
	return len(entries)
}
