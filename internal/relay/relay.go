// Package relay implements SequenceSink outputs that drive external
// hardware on a successful detection: a GPIO relay (adapted in spirit from
// the teacher's cm108.go PTT-keying idea, built on
// github.com/warthog618/go-gpiocdev since the target here is a GPIO line
// rather than a USB CM108 HID) and a serial-port notifier (adapted from
// the teacher's serial_port.go, built on the same github.com/pkg/term
// package).
package relay

import (
	"fmt"
	"sync"
	"time"

	gpiocdev "github.com/warthog618/go-gpiocdev"
	"github.com/pkg/term"

	"github.com/erl987fme/fmed/internal/fme"
)

// GPIOSink pulses a GPIO line for PulseWidth whenever a sequence matching
// Digits is received. A zero-length Digits matches every sequence.
type GPIOSink struct {
	mu     sync.Mutex
	line   *gpiocdev.Line
	digits []int

	PulseWidth time.Duration
}

// OpenGPIOSink requests chip/offset as an output line, initially
// de-asserted.
func OpenGPIOSink(chip string, offset int, digits []int, pulseWidth time.Duration) (*GPIOSink, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("relay: open gpio line %s:%d: %w", chip, offset, err)
	}

	return &GPIOSink{line: line, digits: digits, PulseWidth: pulseWidth}, nil
}

// OnSequence implements fme.SequenceSink.
func (g *GPIOSink) OnSequence(seq fme.Sequence) {
	if !matches(seq, g.digits) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.line.SetValue(1); err != nil {
		return
	}

	time.AfterFunc(g.PulseWidth, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.line.SetValue(0) //nolint:errcheck
	})
}

// Close releases the underlying GPIO line.
func (g *GPIOSink) Close() error {
	return g.line.Close()
}

// SerialSink writes a short ASCII notification line to a serial device on
// every matching sequence, in the spirit of the teacher's KISS-over-serial
// output path.
type SerialSink struct {
	mu     sync.Mutex
	fd     *term.Term
	digits []int
}

// OpenSerialSink opens devicename at baud (0 leaves the current speed
// alone), matching the teacher's serial_port_open contract.
func OpenSerialSink(devicename string, baud int, digits []int) (*SerialSink, error) {
	fd, err := term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("relay: open serial port %s: %w", devicename, err)
	}

	switch baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := fd.SetSpeed(baud); err != nil {
			return nil, fmt.Errorf("relay: set speed %d on %s: %w", baud, devicename, err)
		}
	default:
		return nil, fmt.Errorf("relay: unsupported speed %d", baud)
	}

	return &SerialSink{fd: fd, digits: digits}, nil
}

// OnSequence implements fme.SequenceSink.
func (s *SerialSink) OnSequence(seq fme.Sequence) {
	if !matches(seq, s.digits) {
		return
	}

	line := fmt.Sprintf("FME %s %s\r\n", seq.Start.Format(time.RFC3339), digitsString(seq.Code.Digits()))

	s.mu.Lock()
	defer s.mu.Unlock()

	data := []byte(line)
	if written, err := s.fd.Write(data); err != nil || written != len(data) {
		return
	}
}

// Close releases the underlying serial port.
func (s *SerialSink) Close() error {
	return s.fd.Close()
}

func matches(seq fme.Sequence, want []int) bool {
	if len(want) == 0 {
		return true
	}

	got := seq.Code.Digits()
	if len(got) != len(want) {
		return false
	}

	for i, d := range want {
		if got[i] != d {
			return false
		}
	}

	return true
}

func digitsString(digits []int) string {
	b := make([]byte, len(digits))
	for i, d := range digits {
		b[i] = byte('0' + d)
	}

	return string(b)
}
