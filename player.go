package polymidi

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	intaudio "github.com/cbegin/polymidi-go/internal/audio"
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/render"
)

var ErrNotStarted = errors.New("player not started")

type PlayerOption func(*playerConfig)

type playerConfig struct {
	logger     *zap.Logger
	bufferSize time.Duration
	render     render.Params
	sampleTap  func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{logger: zap.NewNop(), render: render.DefaultParams()}
}

func WithPlayerLogger(l *zap.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithBufferSize sets the output driver buffer, which bounds latency.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.bufferSize = d
	}
}

func WithRenderParams(p render.Params) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.render = p
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// Player plays a Synth through the system audio output. Feed it MIDI bytes
// through Input from a single producer goroutine.
type Player struct {
	mu         sync.Mutex
	log        *zap.Logger
	synth      *Synth
	output     *outputStage
	audio      *intaudio.Player
	sampleRate int
	bufferSize time.Duration
}

// outputStage applies the runtime volume and the sample tap after the synth.
type outputStage struct {
	synth     *Synth
	volume    atomic.Uint64 // float64 bits
	sampleTap func([]float32)
}

func (o *outputStage) Process(dst []float32) {
	o.synth.Process(dst)
	if v := float32(math.Float64frombits(o.volume.Load())); v != 1 {
		for i := range dst {
			dst[i] *= v
		}
	}
	if o.sampleTap != nil {
		o.sampleTap(dst)
	}
}

func NewPlayer(cfg *config.Config, opts ...PlayerOption) (*Player, error) {
	pc := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&pc)
	}
	engine, err := New(cfg, WithLogger(pc.logger))
	if err != nil {
		return nil, err
	}
	synth := NewSynth(engine, pc.render)
	out := &outputStage{synth: synth, sampleTap: pc.sampleTap}
	out.volume.Store(math.Float64bits(1))
	return &Player{
		log:        pc.logger,
		synth:      synth,
		output:     out,
		sampleRate: cfg.SampleRate,
		bufferSize: pc.bufferSize,
	}, nil
}

// Input is where MIDI bytes go. It is valid before Start.
func (p *Player) Input() *Input {
	return p.synth.Input()
}

func (p *Player) Engine() *Engine {
	return p.synth.Engine()
}

// Start opens the audio output and begins rendering. Calling Start on a
// running player is a no-op.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		return nil
	}
	backend, err := intaudio.NewPlayer(p.sampleRate, p.bufferSize, p.output)
	if err != nil {
		return err
	}
	p.audio = backend
	p.audio.Play()
	p.log.Info("audio started", zap.Int("sample_rate", p.sampleRate), zap.Duration("buffer", p.bufferSize))
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return ErrNotStarted
	}
	err := p.audio.Stop()
	p.audio = nil
	st := p.synth.Engine().Stats()
	p.log.Info("audio stopped",
		zap.Uint64("received", st.Received),
		zap.Uint64("dropped", st.Dropped),
		zap.Uint64("steals", st.Steals),
	)
	return err
}

func (p *Player) Stats() Stats {
	return p.synth.Engine().Stats()
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.output.volume.Store(math.Float64bits(volume))
}

func (p *Player) MasterVolume() float64 {
	return math.Float64frombits(p.output.volume.Load())
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() int64 {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	pos := a.Position()
	return int64(pos.Seconds() * float64(p.sampleRate))
}
