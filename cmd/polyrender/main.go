package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"

	"github.com/cbegin/polymidi-go"
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/logging"
)

func main() {
	var (
		out        = flag.String("o", "out.wav", "output WAV path")
		configPath = flag.String("config", "", "path to a YAML engine config")
		seconds    = flag.Float64("seconds", 4, "render length in seconds")
		events     = flag.String("events", "", `comma separated "offset:hex bytes" list, e.g. "0ms:90 3C 64,500ms:80 3C 00" (default: built-in phrase)`)
		wave       = flag.String("wave", "", `oscillator: saw|sine|triangle|square or "hex:<int8 samples>"`)
		logMode    = flag.String("log", "dev", "log mode: dev|prod|none")
	)
	flag.Parse()

	logger, err := logging.New(*logMode, "info")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
	}
	if *wave != "" {
		cfg.Wave = *wave
		if err := cfg.Validate(); err != nil {
			logger.Fatal("wave", zap.Error(err))
		}
	}

	msgs := demoPhrase()
	if *events != "" {
		if msgs, err = parseEvents(*events); err != nil {
			logger.Fatal("parse events", zap.Error(err))
		}
	}

	samples, err := polymidi.RenderOffline(cfg, msgs, *seconds, polymidi.WithLogger(logger))
	if err != nil {
		logger.Fatal("render", zap.Error(err))
	}

	f, err := os.Create(*out)
	if err != nil {
		logger.Fatal("create output", zap.Error(err))
	}
	if err := polymidi.EncodeWAV(f, samples, cfg.SampleRate); err != nil {
		_ = f.Close()
		logger.Fatal("encode", zap.Error(err))
	}
	if err := f.Close(); err != nil {
		logger.Fatal("close output", zap.Error(err))
	}
	fmt.Printf("wrote %s (%d frames, %d events)\n", *out, len(samples)/2, len(msgs))
}

// parseEvents reads "offset:bytes" items. Offsets use time.ParseDuration
// syntax and bytes are hex, spaces allowed.
func parseEvents(s string) ([]polymidi.TimedMessage, error) {
	var msgs []polymidi.TimedMessage
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		at, raw, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("event %q: missing ':'", item)
		}
		d, err := time.ParseDuration(strings.TrimSpace(at))
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", item, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("event %q: %w", item, polymidi.ErrNegativeDuration)
		}
		b, err := hex.DecodeString(strings.Join(strings.Fields(raw), ""))
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", item, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("event %q: no bytes", item)
		}
		msgs = append(msgs, polymidi.TimedMessage{At: d, Bytes: b})
	}
	return msgs, nil
}

// demoPhrase is a short chord progression with a filter sweep on CC1.
func demoPhrase() []polymidi.TimedMessage {
	var msgs []polymidi.TimedMessage
	at := func(ms int, m gomidi.Message) {
		msgs = append(msgs, polymidi.TimedMessage{At: time.Duration(ms) * time.Millisecond, Bytes: m})
	}
	chords := [][]uint8{{48, 55, 64}, {45, 52, 60}, {41, 48, 57}, {43, 50, 59}}
	for i, chord := range chords {
		start := i * 750
		for _, n := range chord {
			at(start, gomidi.NoteOn(0, n, 90))
			at(start+650, gomidi.NoteOff(0, n))
		}
	}
	for i := 0; i <= 24; i++ {
		at(i*120, gomidi.ControlChange(0, 1, uint8(20+i*4)))
	}
	return msgs
}
