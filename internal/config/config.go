// Package config holds the engine configuration and its YAML form.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/polymidi-go/internal/ccmap"
	"github.com/cbegin/polymidi-go/internal/eventq"
	"github.com/cbegin/polymidi-go/internal/voice"
	"github.com/cbegin/polymidi-go/internal/wavetable"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidBlockSize  = errors.New("block size must be positive")
	ErrInvalidRamp       = errors.New("ramp time must not be negative")
	ErrInvalidParam      = errors.New("invalid parameter")
	ErrInvalidBendRange  = errors.New("bend range must be positive")
)

// Parameter names the engine and renderer understand.
const (
	ParamFilterCutoff    = "filter_cutoff"
	ParamFilterResonance = "filter_resonance"
	ParamVibratoDepth    = "vibrato_depth"
	ParamMasterGain      = "master_gain"
)

type Ramps struct {
	Amplitude time.Duration `yaml:"amplitude"`
	Control   time.Duration `yaml:"control"`
	Pitch     time.Duration `yaml:"pitch"`
}

// ParamConfig declares a global smoothed parameter.
type ParamConfig struct {
	Name    string  `yaml:"name"`
	Initial float32 `yaml:"initial"`
	Min     float32 `yaml:"min"`
	Max     float32 `yaml:"max"`
}

// CCConfig binds a controller to a parameter. Min and Max default to the
// parameter's own range when both are zero.
type CCConfig struct {
	CC    int     `yaml:"cc"`
	Param string  `yaml:"param"`
	Min   float32 `yaml:"min,omitempty"`
	Max   float32 `yaml:"max,omitempty"`
	Curve string  `yaml:"curve,omitempty"`
}

type Config struct {
	VoiceCount    int     `yaml:"voices"`
	QueueCapacity int     `yaml:"queue_capacity"`
	SampleRate    int     `yaml:"sample_rate"`
	BlockSize     int     `yaml:"block_size"`
	BendRange     float64 `yaml:"bend_range"`
	StealPolicy   string  `yaml:"steal_policy"`
	// Wave picks the oscillator: empty for the plain saw, a builtin shape
	// name, or "hex:" followed by signed 8-bit samples.
	Wave string `yaml:"wave,omitempty"`

	Ramps  Ramps         `yaml:"ramps"`
	Params []ParamConfig `yaml:"params"`
	CC     []CCConfig    `yaml:"cc"`
}

func Default() *Config {
	return &Config{
		VoiceCount:    8,
		QueueCapacity: 256,
		SampleRate:    48000,
		BlockSize:     64,
		BendRange:     2,
		StealPolicy:   voice.StealReleasingFirst.String(),
		Ramps: Ramps{
			Amplitude: 5 * time.Millisecond,
			Control:   20 * time.Millisecond,
		},
		Params: []ParamConfig{
			{Name: ParamFilterCutoff, Initial: 8000, Min: 200, Max: 8000},
			{Name: ParamFilterResonance, Initial: 0.5, Min: 0, Max: 1},
			{Name: ParamVibratoDepth, Initial: 0, Min: 0, Max: 1},
			{Name: ParamMasterGain, Initial: 0.8, Min: 0, Max: 1},
		},
		CC: []CCConfig{
			{CC: 1, Param: ParamFilterCutoff},
			{CC: 74, Param: ParamFilterResonance},
			{CC: 7, Param: ParamMasterGain},
			{CC: 76, Param: ParamVibratoDepth},
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Lists in the document replace the
// default lists wholesale.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs error
	if c.VoiceCount <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: voices = %d", voice.ErrNoVoices, c.VoiceCount))
	}
	if c.QueueCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: queue_capacity = %d", eventq.ErrInvalidCapacity, c.QueueCapacity))
	}
	if c.SampleRate <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: sample_rate = %d", ErrInvalidSampleRate, c.SampleRate))
	}
	if c.BlockSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: block_size = %d", ErrInvalidBlockSize, c.BlockSize))
	}
	if c.BendRange <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: bend_range = %g", ErrInvalidBendRange, c.BendRange))
	}
	if _, err := voice.ParsePolicy(c.StealPolicy); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.Wavetable(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("wave: %w", err))
	}
	for name, d := range map[string]time.Duration{
		"amplitude": c.Ramps.Amplitude,
		"control":   c.Ramps.Control,
		"pitch":     c.Ramps.Pitch,
	} {
		if d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%w: ramps.%s = %v", ErrInvalidRamp, name, d))
		}
	}

	seen := make(map[string]bool, len(c.Params))
	for i, p := range c.Params {
		switch {
		case p.Name == "":
			errs = multierr.Append(errs, fmt.Errorf("%w: params[%d] has no name", ErrInvalidParam, i))
			continue
		case seen[p.Name]:
			errs = multierr.Append(errs, fmt.Errorf("%w: %q declared twice", ErrInvalidParam, p.Name))
		case p.Min > p.Max:
			errs = multierr.Append(errs, fmt.Errorf("%w: %q min %g > max %g", ErrInvalidParam, p.Name, p.Min, p.Max))
		case p.Initial < p.Min || p.Initial > p.Max:
			errs = multierr.Append(errs, fmt.Errorf("%w: %q initial %g outside %g..%g", ErrInvalidParam, p.Name, p.Initial, p.Min, p.Max))
		}
		seen[p.Name] = true
	}

	for _, cc := range c.CC {
		if cc.CC < 0 || cc.CC > 127 {
			errs = multierr.Append(errs, fmt.Errorf("%w: cc %d", ccmap.ErrInvalidCC, cc.CC))
		}
		if !seen[cc.Param] {
			errs = multierr.Append(errs, fmt.Errorf("%w: cc %d -> %q", ccmap.ErrUnknownParam, cc.CC, cc.Param))
		}
		if _, err := ccmap.ParseCurve(cc.Curve); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cc %d: %w", cc.CC, err))
		}
	}
	return errs
}

// Policy returns the parsed steal policy, falling back to the default.
func (c *Config) Policy() voice.StealPolicy {
	p, err := voice.ParsePolicy(c.StealPolicy)
	if err != nil {
		return voice.StealReleasingFirst
	}
	return p
}

// Wavetable builds the configured oscillator table. It returns nil for the
// plain saw.
func (c *Config) Wavetable() (*wavetable.Table, error) {
	w := strings.TrimSpace(c.Wave)
	if w == "" {
		return nil, nil
	}
	if data, ok := strings.CutPrefix(w, "hex:"); ok {
		return wavetable.ParseHex(data)
	}
	return wavetable.Builtin(w)
}

// Param returns the declaration for name.
func (c *Config) Param(name string) (ParamConfig, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamConfig{}, false
}

// Entries converts the CC table into router bindings, filling unset ranges
// from the parameter declarations.
func (c *Config) Entries() ([]ccmap.EntryConfig, error) {
	out := make([]ccmap.EntryConfig, 0, len(c.CC))
	var errs error
	for _, cc := range c.CC {
		curve, err := ccmap.ParseCurve(cc.Curve)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		lo, hi := cc.Min, cc.Max
		if lo == 0 && hi == 0 {
			if p, ok := c.Param(cc.Param); ok {
				lo, hi = p.Min, p.Max
			}
		}
		out = append(out, ccmap.EntryConfig{CC: cc.CC, Param: cc.Param, Min: lo, Max: hi, Curve: curve})
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Frames converts a duration into whole frames at the configured rate.
func (c *Config) Frames(d time.Duration) int {
	return int(d.Seconds() * float64(c.SampleRate))
}
