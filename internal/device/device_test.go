package device

import (
	"bytes"
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap"
)

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through Port-0", "Arturia KeyStep 32", "Launchpad X LPX MIDI"}
	cases := []struct {
		spec string
		want int
	}{
		{"", 0},
		{"1", 1},
		{"keystep", 1},
		{"LAUNCHPAD", 2},
		{" 2 ", 2},
	}
	for _, tc := range cases {
		got, err := match(names, tc.spec)
		if err != nil || got != tc.want {
			t.Errorf("match(%q) = %d, %v; want %d", tc.spec, got, err, tc.want)
		}
	}
	for _, bad := range []string{"7", "-1", "piano"} {
		if _, err := match(names, bad); !errors.Is(err, ErrNoPort) {
			t.Errorf("match(%q) err = %v, want ErrNoPort", bad, err)
		}
	}
	if _, err := match(nil, ""); !errors.Is(err, ErrNoPort) {
		t.Errorf("match with no ports err = %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestForwardCopiesRawBytes(t *testing.T) {
	var buf bytes.Buffer
	l := &Listener{w: &buf, log: zap.NewNop()}
	l.forward(gomidi.NoteOn(2, 60, 100), 0)
	l.forward(gomidi.ControlChange(2, 74, 10), 5)
	want := []byte{0x92, 60, 100, 0xB2, 74, 10}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("forwarded % X, want % X", buf.Bytes(), want)
	}
	if l.Forwarded() != 2 || l.Failed() != 0 {
		t.Fatalf("forwarded=%d failed=%d", l.Forwarded(), l.Failed())
	}

	bad := &Listener{w: failingWriter{}, log: zap.NewNop()}
	bad.forward(gomidi.NoteOff(0, 60), 0)
	if bad.Failed() != 1 || bad.Forwarded() != 0 {
		t.Fatalf("forwarded=%d failed=%d", bad.Forwarded(), bad.Failed())
	}
}

func TestCloseWithoutPort(t *testing.T) {
	stopped := false
	l := &Listener{log: zap.NewNop(), stop: func() { stopped = true }}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !stopped {
		t.Fatal("close did not stop the listener")
	}
}
