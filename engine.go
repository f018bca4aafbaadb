// Package polymidi turns a live MIDI byte stream into polyphonic voice and
// control state that an audio render loop can consume without allocating,
// locking or blocking.
//
// Two contexts touch an Engine. The input context owns the Input returned by
// Engine.Input and only ever calls Write or Push on it. The render context
// owns everything else: ProcessBlock once per block, Advance once per frame,
// and the read-outs in between.
package polymidi

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cbegin/polymidi-go/internal/ccmap"
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/eventq"
	"github.com/cbegin/polymidi-go/internal/midi"
	"github.com/cbegin/polymidi-go/internal/smooth"
	"github.com/cbegin/polymidi-go/internal/voice"
)

var ErrNilConfig = errors.New("config is nil")

type Option func(*engineOptions)

type engineOptions struct {
	logger *zap.Logger
}

func defaultEngineOptions() engineOptions {
	return engineOptions{logger: zap.NewNop()}
}

// WithLogger sets the logger used for setup and shutdown messages. Nothing is
// logged from the render or input paths.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Stats is a snapshot of engine counters. It is safe to take from any
// goroutine.
type Stats struct {
	Received  uint64 // events accepted by the queue
	Dropped   uint64 // events lost to a full queue
	Processed uint64 // events dispatched by the render context
	Steals    uint64
	Active    int
	Releasing int
}

type Engine struct {
	cfg    *config.Config
	log    *zap.Logger
	queue  *eventq.Queue
	input  *Input
	voices *voice.Table
	bank   *smooth.Bank
	router *ccmap.Router

	bendRange float64
	bendRatio float32

	processed atomic.Uint64
	steals    atomic.Uint64
	active    atomic.Int32
	releasing atomic.Int32
}

// New builds an engine from cfg. Everything the render context needs is
// allocated here; cfg is not consulted again afterwards.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	q, err := eventq.New(cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}
	table, err := voice.New(cfg.VoiceCount, voice.Config{
		SampleRate: cfg.SampleRate,
		AmpRamp:    cfg.Ramps.Amplitude,
		PitchRamp:  cfg.Ramps.Pitch,
		Policy:     cfg.Policy(),
	})
	if err != nil {
		return nil, err
	}
	bank := smooth.NewBank(cfg.SampleRate)
	for _, p := range cfg.Params {
		if _, err := bank.Add(p.Name, p.Initial, cfg.Ramps.Control); err != nil {
			return nil, err
		}
	}
	entries, err := cfg.Entries()
	if err != nil {
		return nil, err
	}
	mapping, err := ccmap.Build(entries, bank)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		log:       o.logger,
		queue:     q,
		voices:    table,
		bank:      bank,
		router:    ccmap.NewRouter(mapping, bank),
		bendRange: cfg.BendRange,
		bendRatio: 1,
	}
	e.input = &Input{queue: q}
	e.log.Info("engine ready",
		zap.Int("voices", cfg.VoiceCount),
		zap.Int("queue_capacity", q.Cap()),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Stringer("steal_policy", table.Policy()),
		zap.Ints("mapped_cc", mapping.Mapped()),
	)
	return e, nil
}

// Input returns the producer handle. There is exactly one per engine and it
// must only be used from one goroutine at a time.
func (e *Engine) Input() *Input {
	return e.input
}

// ProcessBlock drains pending events and applies them in arrival order. It
// returns how many were applied. At most one queue's worth is taken per call
// so a flooding producer cannot stall the block.
func (e *Engine) ProcessBlock() int {
	n := 0
	for limit := e.queue.Cap(); n < limit; n++ {
		ev, ok := e.queue.TryPop()
		if !ok {
			break
		}
		e.dispatch(ev)
	}
	if n > 0 {
		e.processed.Add(uint64(n))
		e.steals.Store(e.voices.Steals())
	}
	e.publishCounts()
	return n
}

func (e *Engine) dispatch(ev midi.Event) {
	switch ev.Kind {
	case midi.KindNoteOn:
		if ev.Velocity() == 0 {
			e.release(ev.Note())
			return
		}
		e.voices.Allocate(ev.Note(), ev.Velocity())
	case midi.KindNoteOff:
		e.release(ev.Note())
	case midi.KindControlChange:
		switch ev.Controller() {
		case midi.CCAllSoundOff:
			e.voices.Reset()
		case midi.CCAllNotesOff:
			e.voices.ReleaseAll()
			e.startReleases()
		default:
			e.router.Route(ev.Controller(), ev.Value())
		}
	case midi.KindPitchBend:
		e.bendRatio = midi.PitchBendToRatio(ev.BendValue(), e.bendRange)
	}
}

func (e *Engine) release(note uint8) {
	if e.voices.Release(note) > 0 {
		e.startReleases()
	}
}

// startReleases points every releasing voice's amplitude at zero.
func (e *Engine) startReleases() {
	for i := 0; i < e.voices.Len(); i++ {
		v := e.voices.Voice(i)
		if v.State == voice.Releasing && v.Amp.Target() != 0 {
			v.Amp.SetTarget(0)
		}
	}
}

// Advance steps every smoother by one frame and returns releasing voices
// whose amplitude has reached zero to the idle pool.
func (e *Engine) Advance() {
	e.voices.Advance()
	e.bank.Advance()
	for i := 0; i < e.voices.Len(); i++ {
		v := e.voices.Voice(i)
		if v.State == voice.Releasing && v.Amp.Settled() && v.Amp.Current() == 0 {
			e.voices.Finish(i)
		}
	}
}

func (e *Engine) publishCounts() {
	e.active.Store(int32(e.voices.Count(voice.Active)))
	e.releasing.Store(int32(e.voices.Count(voice.Releasing)))
}

// Voices returns the size of the voice table.
func (e *Engine) Voices() int {
	return e.voices.Len()
}

// Voice exposes slot i to the render context.
func (e *Engine) Voice(i int) *voice.Voice {
	return e.voices.Voice(i)
}

// Handle resolves a parameter name once so the render loop can read it by
// index.
func (e *Engine) Handle(name string) (smooth.Handle, bool) {
	return e.bank.Lookup(name)
}

func (e *Engine) Value(h smooth.Handle) float32 {
	return e.bank.Value(h)
}

// Param returns the current smoothed value of the named parameter.
func (e *Engine) Param(name string) (float32, bool) {
	h, ok := e.bank.Lookup(name)
	if !ok {
		return 0, false
	}
	return e.bank.Value(h), true
}

// ParamTarget returns the value the named parameter is ramping toward.
func (e *Engine) ParamTarget(name string) (float32, bool) {
	h, ok := e.bank.Lookup(name)
	if !ok {
		return 0, false
	}
	return e.bank.Param(h).Target(), true
}

// BendRatio is the frequency multiplier from the most recent pitch bend.
func (e *Engine) BendRatio() float32 {
	return e.bendRatio
}

func (e *Engine) SampleRate() int {
	return e.cfg.SampleRate
}

func (e *Engine) BlockSize() int {
	return e.cfg.BlockSize
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) Logger() *zap.Logger {
	return e.log
}

func (e *Engine) Stats() Stats {
	return Stats{
		Received:  e.input.received.Load(),
		Dropped:   e.queue.Dropped(),
		Processed: e.processed.Load(),
		Steals:    e.steals.Load(),
		Active:    int(e.active.Load()),
		Releasing: int(e.releasing.Load()),
	}
}

// Input is the producer side of the engine. Write decodes raw MIDI bytes;
// Push enqueues already decoded events. Neither blocks: when the queue is
// full the event is dropped and counted.
type Input struct {
	queue    *eventq.Queue
	decoder  midi.Decoder
	received atomic.Uint64
}

// Write decodes p and enqueues every complete message. It always consumes
// all of p.
func (in *Input) Write(p []byte) (int, error) {
	for _, b := range p {
		if ev, ok := in.decoder.Decode(b); ok {
			in.Push(ev)
		}
	}
	return len(p), nil
}

func (in *Input) Push(ev midi.Event) bool {
	if !in.queue.Push(ev) {
		return false
	}
	in.received.Add(1)
	return true
}

// Reset drops any partially decoded message and the running status, for
// example after a device reconnects.
func (in *Input) Reset() {
	in.decoder.Reset()
}
