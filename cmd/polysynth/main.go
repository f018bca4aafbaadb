package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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
		list       = flag.Bool("list", false, "list MIDI input ports and exit")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		buffer     = flag.Duration("buffer", 20*time.Millisecond, "audio output buffer")
		statsEvery = flag.Duration("stats", 10*time.Second, "log engine stats at this interval (0 = never)")
		wave       = flag.String("wave", "", `oscillator: saw|sine|triangle|square or "hex:<int8 samples>"`)
		logMode    = flag.String("log", "dev", "log mode: dev|prod|none")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(*logMode, *logLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	defer device.CloseDriver()

	if *list {
		ports, err := device.ListPorts(3 * time.Second)
		if err != nil {
			logger.Fatal("list ports", zap.Error(err))
		}
		if len(ports) == 0 {
			fmt.Println("no MIDI input ports")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *wave != "" {
		cfg.Wave = *wave
		if err := cfg.Validate(); err != nil {
			logger.Fatal("wave", zap.Error(err))
		}
	}

	pl, err := polymidi.NewPlayer(cfg,
		polymidi.WithPlayerLogger(logger),
		polymidi.WithBufferSize(*buffer),
	)
	if err != nil {
		logger.Fatal("create player", zap.Error(err))
	}
	pl.SetMasterVolume(*volume)
	if err := pl.Start(); err != nil {
		logger.Fatal("start audio", zap.Error(err))
	}

	listener, err := device.Open(*port, pl.Input(), logger)
	if err != nil {
		_ = pl.Stop()
		logger.Fatal("open MIDI input", zap.Error(err))
	}
	fmt.Printf("playing from %q; ctrl+c to quit\n", listener.Port())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var tick <-chan time.Time
	if *statsEvery > 0 {
		t := time.NewTicker(*statsEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-tick:
			logStats(logger, pl.Stats())
		case <-sig:
			if err := listener.Close(); err != nil {
				logger.Warn("close MIDI input", zap.Error(err))
			}
			if err := pl.Stop(); err != nil {
				logger.Warn("stop audio", zap.Error(err))
			}
			return
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func logStats(logger *zap.Logger, st polymidi.Stats) {
	fields := []zap.Field{
		zap.Uint64("received", st.Received),
		zap.Uint64("processed", st.Processed),
		zap.Uint64("dropped", st.Dropped),
		zap.Uint64("steals", st.Steals),
		zap.Int("active", st.Active),
		zap.Int("releasing", st.Releasing),
	}
	if st.Dropped > 0 {
		logger.Warn("engine stats", fields...)
		return
	}
	logger.Info("engine stats", fields...)
}
