package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewModes(t *testing.T) {
	l, err := New("none", "")
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if l.Core().Enabled(zap.ErrorLevel) {
		t.Fatal("none logger is enabled")
	}

	dev, err := New("dev", "debug")
	if err != nil {
		t.Fatalf("dev: %v", err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Fatal("dev logger at debug drops debug")
	}

	if _, err := New("verbose", ""); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if _, err := New("prod", "loud"); err == nil {
		t.Fatal("unknown level accepted")
	}
}

func TestNewWritesToOutputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mon.log")
	l, err := New("prod", "warn", path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Info("hidden")
	l.Warn("queue saturated", zap.Uint64("dropped", 3))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	if strings.Contains(out, "hidden") || !strings.Contains(out, "queue saturated") {
		t.Fatalf("log file = %q", out)
	}
}
