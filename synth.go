package polymidi

import (
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/render"
	"github.com/cbegin/polymidi-go/internal/smooth"
)

// Synth couples an Engine to the reference renderer and implements
// audio.SampleSource. Process is the render context: it drains the event
// queue at the start of every block and advances the engine every frame.
type Synth struct {
	engine *Engine
	render *render.Renderer
	block  int
	pos    int
}

// NewSynth builds the renderer for e. The configured wave is used unless
// params already carries one.
func NewSynth(e *Engine, params render.Params) *Synth {
	if params.Wave == nil {
		// The config was validated by New.
		params.Wave, _ = e.Config().Wavetable()
	}
	return &Synth{
		engine: e,
		render: render.New(e.SampleRate(), e.Voices(), handlesFor(e), params),
		block:  e.BlockSize(),
	}
}

func handlesFor(e *Engine) render.Handles {
	get := func(name string) smooth.Handle {
		if h, ok := e.Handle(name); ok {
			return h
		}
		return render.NoParam
	}
	return render.Handles{
		Cutoff:       get(config.ParamFilterCutoff),
		Resonance:    get(config.ParamFilterResonance),
		VibratoDepth: get(config.ParamVibratoDepth),
		MasterGain:   get(config.ParamMasterGain),
	}
}

// Process fills dst with interleaved stereo frames.
func (s *Synth) Process(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		if s.pos == 0 {
			s.engine.ProcessBlock()
		}
		s.engine.Advance()
		dst[i], dst[i+1] = s.render.Frame(s.engine)
		s.pos++
		if s.pos == s.block {
			s.pos = 0
		}
	}
}

func (s *Synth) Engine() *Engine {
	return s.engine
}

func (s *Synth) Input() *Input {
	return s.engine.Input()
}
