package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"

	"github.com/cbegin/polymidi-go"
	"github.com/cbegin/polymidi-go/internal/config"
	"github.com/cbegin/polymidi-go/internal/device"
	"github.com/cbegin/polymidi-go/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML engine config")
		port       = flag.String("port", "", "MIDI input port index or name substring (default: first port)")
		demo       = flag.Bool("demo", false, "play a built-in arpeggio instead of opening a MIDI port")
		buffer     = flag.Duration("buffer", 30*time.Millisecond, "audio output buffer")
		logPath    = flag.String("log-file", filepath.Join(".", "polymon.log"), "log file; the terminal belongs to the UI")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New("prod", *logLevel, *logPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	var a *analyzer
	pl, err := polymidi.NewPlayer(cfg,
		polymidi.WithPlayerLogger(logger),
		polymidi.WithBufferSize(*buffer),
		polymidi.WithSampleTap(func(s []float32) { a.Tap(s) }),
	)
	if err != nil {
		log.Fatal(err)
	}
	a = newAnalyzer(pl.Engine())

	source := "demo arpeggio"
	var listener *device.Listener
	if !*demo {
		defer device.CloseDriver()
		listener, err = device.Open(*port, pl.Input(), logger)
		if err != nil {
			log.Fatalf("open MIDI input: %v (try -demo)", err)
		}
		source = listener.Port()
	}

	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}

	p := tea.NewProgram(newModel(pl, a, source, *demo), tea.WithAltScreen())
	_, runErr := p.Run()

	if listener != nil {
		if err := listener.Close(); err != nil {
			logger.Warn("close MIDI input", zap.Error(err))
		}
	}
	if err := pl.Stop(); err != nil {
		logger.Warn("stop audio", zap.Error(err))
	}
	if runErr != nil {
		fmt.Println("error:", runErr)
	}
}
