package main

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/maddyblue/go-dsp/fft"

	"github.com/cbegin/polymidi-go"
	"github.com/cbegin/polymidi-go/internal/voice"
)

const (
	fftSize    = 2048
	ringBufLen = 16384
)

type voiceView struct {
	Note    uint8
	HasNote bool
	State   voice.State
	Amp     float32
}

type paramView struct {
	Name    string
	Current float32
	Target  float32
}

// snapshot is the engine state as of the last audio callback.
type snapshot struct {
	Voices []voiceView
	Params []paramView
	Bend   float32
}

// analyzer collects output samples and engine state on the audio thread.
// The UI reads copies; it never touches the engine directly.
type analyzer struct {
	mu         sync.Mutex
	engine     *polymidi.Engine
	names      []string
	sampleRate int
	ring       []float32 // mono
	writePos   int
	snap       snapshot
}

func newAnalyzer(e *polymidi.Engine) *analyzer {
	a := &analyzer{
		engine:     e,
		sampleRate: e.SampleRate(),
		ring:       make([]float32, ringBufLen),
	}
	for _, p := range e.Config().Params {
		a.names = append(a.names, p.Name)
	}
	a.snap.Voices = make([]voiceView, e.Voices())
	a.snap.Params = make([]paramView, len(a.names))
	return a
}

// Tap runs on the audio thread right after the engine rendered samples, so
// reading engine state here is safe. A busy UI costs one skipped refresh.
func (a *analyzer) Tap(samples []float32) {
	if !a.mu.TryLock() {
		return
	}
	defer a.mu.Unlock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringBufLen
	}
	for i := range a.snap.Voices {
		v := a.engine.Voice(i)
		a.snap.Voices[i] = voiceView{Note: v.Note, HasNote: v.HasNote, State: v.State, Amp: v.Amp.Current()}
	}
	for i, name := range a.names {
		cur, _ := a.engine.Param(name)
		tgt, _ := a.engine.ParamTarget(name)
		a.snap.Params[i] = paramView{Name: name, Current: cur, Target: tgt}
	}
	a.snap.Bend = a.engine.BendRatio()
}

// Snapshot copies the latest state and the most recent fftSize samples.
func (a *analyzer) Snapshot() (snapshot, []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := snapshot{
		Voices: append([]voiceView(nil), a.snap.Voices...),
		Params: append([]paramView(nil), a.snap.Params...),
		Bend:   a.snap.Bend,
	}
	out := make([]float64, fftSize)
	start := (a.writePos - fftSize + ringBufLen) % ringBufLen
	for i := range out {
		out[i] = float64(a.ring[(start+i)%ringBufLen])
	}
	return s, out
}

// spectrum folds a Hann-windowed FFT of samples into n log-spaced bands
// normalised to 0..1 over an 80 dB range.
func spectrum(samples []float64, sampleRate, n int) []float64 {
	bands := make([]float64, n)
	if len(samples) < fftSize || n < 1 {
		return bands
	}
	buf := make([]float64, fftSize)
	for i := range buf {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
		buf[i] = samples[len(samples)-fftSize+i] * w
	}
	bins := fft.FFTReal(buf)

	half := fftSize / 2
	maxBin := half * 18000 / (sampleRate / 2)
	if maxBin > half {
		maxBin = half
	}
	logMin, logMax := 0.0, math.Log(float64(maxBin))
	for i := range bands {
		lo := int(math.Exp(logMin + float64(i)/float64(n)*(logMax-logMin)))
		hi := int(math.Exp(logMin + float64(i+1)/float64(n)*(logMax-logMin)))
		if hi <= lo {
			hi = lo + 1
		}
		if hi > half {
			hi = half
		}
		sum := 0.0
		for b := lo; b < hi; b++ {
			sum += cmplx.Abs(bins[b])
		}
		db := 20 * math.Log10(sum/float64(hi-lo)/fftSize+1e-10)
		bands[i] = math.Max(0, math.Min(1, (db+80)/80))
	}
	return bands
}
