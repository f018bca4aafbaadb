package polymidi

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/midi"
	"github.com/cbegin/polymidi-go/internal/voice"
)

func newTestEngine(t *testing.T, edit func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.SampleRate = 1000
	cfg.Ramps = config.Ramps{Amplitude: 5 * time.Millisecond, Control: 20 * time.Millisecond}
	if edit != nil {
		edit(cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func write(t *testing.T, e *Engine, msgs ...gomidi.Message) {
	t.Helper()
	for _, m := range msgs {
		if _, err := e.Input().Write(m.Bytes()); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func activeNotes(e *Engine) []uint8 {
	var out []uint8
	for i := 0; i < e.Voices(); i++ {
		if v := e.Voice(i); v.State == voice.Active {
			out = append(out, v.Note)
		}
	}
	slices.Sort(out)
	return out
}

func TestEngineStealsOldestOfFourVoices(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.VoiceCount = 4 })
	write(t, e,
		gomidi.NoteOn(0, 60, 100),
		gomidi.NoteOn(0, 64, 90),
		gomidi.NoteOn(0, 67, 80),
		gomidi.NoteOn(0, 72, 70),
		gomidi.NoteOn(0, 76, 60),
	)
	if n := e.ProcessBlock(); n != 5 {
		t.Fatalf("processed %d events, want 5", n)
	}
	if got, want := activeNotes(e), []uint8{64, 67, 72, 76}; !slices.Equal(got, want) {
		t.Fatalf("active notes = %v, want %v", got, want)
	}
	if e.Voice(0).Note != 76 {
		t.Fatalf("note 76 landed in a slot other than note 60's: slot 0 holds %d", e.Voice(0).Note)
	}
	st := e.Stats()
	if st.Steals != 1 || st.Active != 4 || st.Processed != 5 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestEngineRunningStatusInput(t *testing.T) {
	e := newTestEngine(t, nil)
	// One status byte, three notes.
	if _, err := e.Input().Write([]byte{0x90, 60, 100, 64, 100, 67, 100}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e.ProcessBlock()
	if got, want := activeNotes(e), []uint8{60, 64, 67}; !slices.Equal(got, want) {
		t.Fatalf("active notes = %v, want %v", got, want)
	}
	// Velocity zero under running status releases.
	if _, err := e.Input().Write([]byte{64, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e.ProcessBlock()
	if got, want := activeNotes(e), []uint8{60, 67}; !slices.Equal(got, want) {
		t.Fatalf("active notes = %v, want %v", got, want)
	}
}

func TestEngineCutoffControlChangeConverges(t *testing.T) {
	e := newTestEngine(t, nil)
	write(t, e, gomidi.ControlChange(0, 1, 64))
	e.ProcessBlock()

	target, ok := e.ParamTarget(config.ParamFilterCutoff)
	if !ok {
		t.Fatal("filter_cutoff is not registered")
	}
	if math.Abs(float64(target)-(200+64.0/127*7800)) > 0.01 {
		t.Fatalf("cutoff target = %f", target)
	}
	prev, _ := e.Param(config.ParamFilterCutoff)
	if prev != 8000 {
		t.Fatalf("cutoff moved before any advance: %f", prev)
	}
	for i := 0; i < 20; i++ {
		e.Advance()
		cur, _ := e.Param(config.ParamFilterCutoff)
		if cur > prev || cur < target {
			t.Fatalf("frame %d: cutoff %f outside [%f, %f]", i, cur, target, prev)
		}
		prev = cur
	}
	if prev != target {
		t.Fatalf("cutoff = %f after ramp, want %f", prev, target)
	}
}

func TestEngineReleaseReturnsVoiceToIdle(t *testing.T) {
	e := newTestEngine(t, nil)
	write(t, e, gomidi.NoteOn(0, 60, 127))
	e.ProcessBlock()
	for i := 0; i < 5; i++ {
		e.Advance()
	}
	v := e.Voice(0)
	if v.Amp.Current() != 1 {
		t.Fatalf("attack ended at %f, want 1", v.Amp.Current())
	}

	write(t, e, gomidi.NoteOff(0, 60))
	e.ProcessBlock()
	if v.State != voice.Releasing {
		t.Fatalf("state = %v after note off", v.State)
	}
	for i := 0; i < 4; i++ {
		e.Advance()
		if v.State != voice.Releasing {
			t.Fatalf("voice went %v at frame %d while amp = %f", v.State, i, v.Amp.Current())
		}
	}
	e.Advance()
	if v.State != voice.Idle || v.Amp.Current() != 0 {
		t.Fatalf("after release ramp: state=%v amp=%f", v.State, v.Amp.Current())
	}
}

func TestEngineNoteOnOffInOneBlock(t *testing.T) {
	e := newTestEngine(t, nil)
	write(t, e, gomidi.NoteOn(0, 60, 100), gomidi.NoteOff(0, 60))
	e.ProcessBlock()
	e.Advance()
	if busy := e.Voices() - countState(e, voice.Idle); busy != 0 {
		t.Fatalf("%d voices still busy", busy)
	}
}

func countState(e *Engine, s voice.State) int {
	n := 0
	for i := 0; i < e.Voices(); i++ {
		if e.Voice(i).State == s {
			n++
		}
	}
	return n
}

func TestEngineAllNotesOffAndAllSoundOff(t *testing.T) {
	e := newTestEngine(t, nil)
	write(t, e, gomidi.NoteOn(0, 60, 100), gomidi.NoteOn(0, 62, 100), gomidi.ControlChange(0, 123, 0))
	e.ProcessBlock()
	if n := countState(e, voice.Releasing); n != 2 {
		t.Fatalf("releasing = %d after all notes off", n)
	}

	write(t, e, gomidi.NoteOn(0, 64, 100), gomidi.ControlChange(0, 120, 0))
	e.ProcessBlock()
	if n := countState(e, voice.Idle); n != e.Voices() {
		t.Fatalf("idle = %d after all sound off", n)
	}
}

func TestEnginePitchBend(t *testing.T) {
	e := newTestEngine(t, nil)
	if e.BendRatio() != 1 {
		t.Fatalf("initial bend = %f", e.BendRatio())
	}
	// Full up: 14-bit 16383, lsb first.
	if _, err := e.Input().Write([]byte{0xE0, 0x7F, 0x7F}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e.ProcessBlock()
	want := math.Pow(2, (16383.0-8192)/8192*2/12)
	if math.Abs(float64(e.BendRatio())-want) > 1e-5 {
		t.Fatalf("bend ratio = %f, want %f", e.BendRatio(), want)
	}
	if _, err := e.Input().Write([]byte{0xE0, 0x00, 0x40}); err != nil {
		t.Fatalf("write: %v", err)
	}
	e.ProcessBlock()
	if e.BendRatio() != 1 {
		t.Fatalf("centred bend ratio = %f", e.BendRatio())
	}
}

func TestEngineDropsWhenQueueFull(t *testing.T) {
	e := newTestEngine(t, func(c *config.Config) { c.QueueCapacity = 4 })
	for n := uint8(0); n < 10; n++ {
		e.Input().Push(midi.NoteOn(40+n, 100))
	}
	st := e.Stats()
	if st.Received != 4 || st.Dropped != 6 {
		t.Fatalf("received=%d dropped=%d, want 4 and 6", st.Received, st.Dropped)
	}
	if n := e.ProcessBlock(); n != 4 {
		t.Fatalf("processed %d", n)
	}
	if got, want := activeNotes(e), []uint8{40, 41, 42, 43}; !slices.Equal(got, want) {
		t.Fatalf("oldest events not kept: %v", got)
	}
}

func TestEngineUnmappedControlIsIgnored(t *testing.T) {
	e := newTestEngine(t, nil)
	before, _ := e.ParamTarget(config.ParamMasterGain)
	write(t, e, gomidi.ControlChange(0, 20, 0))
	e.ProcessBlock()
	after, _ := e.ParamTarget(config.ParamMasterGain)
	if before != after {
		t.Fatalf("unmapped cc changed master gain %f -> %f", before, after)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilConfig) {
		t.Fatalf("err = %v", err)
	}
	cfg := config.Default()
	cfg.VoiceCount = 0
	if _, err := New(cfg); !errors.Is(err, voice.ErrNoVoices) {
		t.Fatalf("err = %v, want ErrNoVoices", err)
	}
}

func TestEngineRenderPathDoesNotAllocate(t *testing.T) {
	e := newTestEngine(t, nil)
	in := e.Input()
	note := uint8(0)
	allocs := testing.AllocsPerRun(500, func() {
		in.Push(midi.NoteOn(note&0x7F, 100))
		in.Push(midi.ControlChange(1, note&0x7F))
		in.Push(midi.NoteOff((note-4)&0x7F, 0))
		e.ProcessBlock()
		for i := 0; i < 16; i++ {
			e.Advance()
		}
		note++
	})
	if allocs != 0 {
		t.Fatalf("render path allocated %.1f times per run", allocs)
	}
}

func BenchmarkEngineBlock(b *testing.B) {
	e, err := New(config.Default())
	if err != nil {
		b.Fatalf("new engine: %v", err)
	}
	in := e.Input()
	block := e.BlockSize()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := uint8(i)
		in.Push(midi.NoteOn(n&0x7F, 100))
		in.Push(midi.NoteOff((n-6)&0x7F, 0))
		e.ProcessBlock()
		for f := 0; f < block; f++ {
			e.Advance()
		}
	}
}
