// Package device connects operating system MIDI inputs to an io.Writer,
// normally a polymidi.Input. It only moves bytes; decoding happens behind
// the writer.
//
// A driver must be registered by the main package, for example with
//
//	import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
package device

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrNoPort      = errors.New("no matching MIDI input port")
	ErrScanTimeout = errors.New("timed out listing MIDI ports")
)

type Port struct {
	Index int
	Name  string
}

func (p Port) String() string {
	return fmt.Sprintf("%d: %s", p.Index, p.Name)
}

// ListPorts enumerates the input ports. Some platform MIDI services can hang
// while enumerating, so the scan is abandoned after timeout.
func ListPorts(timeout time.Duration) ([]Port, error) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()
	select {
	case ins := <-ch:
		ports := make([]Port, len(ins))
		for i, in := range ins {
			ports[i] = Port{Index: i, Name: in.String()}
		}
		return ports, nil
	case <-time.After(timeout):
		return nil, ErrScanTimeout
	}
}

// match picks a port by index or by case-insensitive name substring. An
// empty spec takes the first port.
func match(names []string, spec string) (int, error) {
	if len(names) == 0 {
		return -1, fmt.Errorf("%w: no input ports available", ErrNoPort)
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(spec); err == nil {
		if n < 0 || n >= len(names) {
			return -1, fmt.Errorf("%w: index %d of %d", ErrNoPort, n, len(names))
		}
		return n, nil
	}
	want := strings.ToLower(spec)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrNoPort, spec)
}

// Listener forwards every message from one input port to a writer.
type Listener struct {
	port      drivers.In
	w         io.Writer
	log       *zap.Logger
	stop      func()
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

// Open finds the port named by spec and starts listening on it.
func Open(spec string, w io.Writer, log *zap.Logger) (*Listener, error) {
	ins := gomidi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	idx, err := match(names, spec)
	if err != nil {
		return nil, err
	}
	return Listen(ins[idx], w, log)
}

// Listen starts forwarding from an already selected port.
func Listen(in drivers.In, w io.Writer, log *zap.Logger) (*Listener, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Listener{port: in, w: w, log: log}
	stop, err := gomidi.ListenTo(in, l.forward)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", in.String(), err)
	}
	l.stop = stop
	log.Info("midi input connected", zap.String("port", in.String()))
	return l, nil
}

// forward runs on the driver's callback goroutine, which is the input
// context. It must not block.
func (l *Listener) forward(msg gomidi.Message, _ int32) {
	if _, err := l.w.Write(msg.Bytes()); err != nil {
		l.failed.Add(1)
		return
	}
	l.forwarded.Add(1)
}

// Forwarded counts messages handed to the writer.
func (l *Listener) Forwarded() uint64 {
	return l.forwarded.Load()
}

func (l *Listener) Failed() uint64 {
	return l.failed.Load()
}

func (l *Listener) Port() string {
	if l.port == nil {
		return ""
	}
	return l.port.String()
}

// Close stops listening and closes the port.
func (l *Listener) Close() error {
	var err error
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	if l.port != nil && l.port.IsOpen() {
		err = multierr.Append(err, l.port.Close())
	}
	l.log.Info("midi input disconnected",
		zap.String("port", l.Port()),
		zap.Uint64("forwarded", l.Forwarded()),
		zap.Uint64("failed", l.Failed()),
	)
	return err
}

// CloseDriver releases the registered driver. Call it once at exit.
func CloseDriver() {
	gomidi.CloseDriver()
}
