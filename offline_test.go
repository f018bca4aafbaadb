package polymidi

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/polymidi-go/internal/config"
)

func phrase() []TimedMessage {
	msgs := []TimedMessage{
		{At: 0, Bytes: gomidi.NoteOn(0, 60, 100).Bytes()},
		{At: 100 * time.Millisecond, Bytes: gomidi.NoteOn(0, 64, 90).Bytes()},
		{At: 200 * time.Millisecond, Bytes: gomidi.ControlChange(0, 1, 30).Bytes()},
		{At: 300 * time.Millisecond, Bytes: gomidi.NoteOff(0, 60).Bytes()},
		{At: 400 * time.Millisecond, Bytes: gomidi.NoteOff(0, 64).Bytes()},
	}
	return msgs
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestRenderOfflineIsDeterministic(t *testing.T) {
	a, err := RenderOffline(config.Default(), phrase(), 0.6)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := RenderOffline(config.Default(), phrase(), 0.6)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(a) != 2*int(48000*0.6) {
		t.Fatalf("got %d samples", len(a))
	}
	ha := sha256.Sum256(float32Bytes(a))
	hb := sha256.Sum256(float32Bytes(b))
	if ha != hb {
		t.Fatal("two renders of the same phrase differ")
	}
}

func float32Bytes(s []float32) []byte {
	out := make([]byte, 0, len(s)*4)
	for _, v := range s {
		u := math.Float32bits(v)
		out = append(out, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	return out
}

func TestRenderOfflineFollowsNotes(t *testing.T) {
	out, err := RenderOffline(config.Default(), phrase(), 0.6)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	frame := func(d time.Duration) int { return int(d.Seconds()*48000) * 2 }
	sounding := out[frame(50*time.Millisecond):frame(250*time.Millisecond)]
	if rms(sounding) < 0.01 {
		t.Fatalf("held notes are silent: rms %f", rms(sounding))
	}
	// Both notes are released by 400ms and the release ramp is 5ms.
	tail := out[frame(450*time.Millisecond):]
	if r := rms(tail); r != 0 {
		t.Fatalf("tail after release has rms %f", r)
	}
}

func TestRenderOfflineOrdersMessages(t *testing.T) {
	// Out of order input: the note off sorts after the note on.
	msgs := []TimedMessage{
		{At: 50 * time.Millisecond, Bytes: gomidi.NoteOff(0, 60).Bytes()},
		{At: 0, Bytes: gomidi.NoteOn(0, 60, 100).Bytes()},
	}
	out, err := RenderOffline(config.Default(), msgs, 0.1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rms(out[:2*2000]) == 0 {
		t.Fatal("note on was not applied first")
	}
	if rms(out[2*3000:]) != 0 {
		t.Fatal("note off was not applied")
	}
}

func TestRenderOfflineRejectsBadInput(t *testing.T) {
	if _, err := RenderOffline(config.Default(), nil, -1); !errors.Is(err, ErrNegativeDuration) {
		t.Fatalf("err = %v", err)
	}
	cfg := config.Default()
	cfg.SampleRate = 0
	if _, err := RenderOffline(cfg, nil, 1); !errors.Is(err, config.ErrInvalidSampleRate) {
		t.Fatalf("err = %v", err)
	}
}

func TestEncodeWAV(t *testing.T) {
	samples, err := RenderOffline(config.Default(), phrase(), 0.25)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	path := filepath.Join(t.TempDir(), "phrase.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := EncodeWAV(f, samples, 48000); err != nil {
		f.Close()
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("RIFF")) || !bytes.Equal(raw[8:12], []byte("WAVE")) {
		t.Fatalf("bad header %q", raw[:12])
	}
	frames := len(samples) / 2
	if want := 44 + frames*4; len(raw) != want {
		t.Fatalf("wav is %d bytes, want %d", len(raw), want)
	}
}

func TestRenderOfflineUsesConfiguredWave(t *testing.T) {
	saw, err := RenderOffline(config.Default(), phrase(), 0.2)
	if err != nil {
		t.Fatalf("render saw: %v", err)
	}
	cfg := config.Default()
	cfg.Wave = "triangle"
	tri, err := RenderOffline(cfg, phrase(), 0.2)
	if err != nil {
		t.Fatalf("render triangle: %v", err)
	}
	if rms(tri) == 0 {
		t.Fatal("triangle render is silent")
	}
	if slices.Equal(saw, tri) {
		t.Fatal("wave setting had no effect")
	}
}
