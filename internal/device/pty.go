package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/erl987fme/fmed/internal/fme"
)

// PTY is a loopback Adapter backed by a pseudo-terminal pair, the same
// primitive the teacher's kiss.go uses (pty.Open) to stand in for a real
// serial device in tests. It has exactly one device, named "pty", and
// samples are carried over the pty as little-endian float32 values — good
// enough to drive the Capture Reader end-to-end in tests without real
// audio hardware.
//
// Both ends are put into raw mode (the teacher's kiss.go leaves this as a
// "cfmakeraw?" TODO): in the default cooked discipline, OPOST/ONLCR/ISIG
// translate or swallow bytes equal to '\n', '\r' and various control
// characters, which corrupts arbitrary binary float32 samples whenever one
// of their four bytes happens to match.
type PTY struct {
	master *os.File
	slave  *os.File
}

// NewPTY allocates the pty pair and puts both ends into raw mode. Test code
// writes synthetic samples to Slave() while the Capture Reader reads via the
// Adapter's Stream.
func NewPTY() (*PTY, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}

	if _, err := term.MakeRaw(int(master.Fd())); err != nil {
		master.Close()
		slave.Close()

		return nil, fmt.Errorf("device: put pty master in raw mode: %w", err)
	}

	if _, err := term.MakeRaw(int(slave.Fd())); err != nil {
		master.Close()
		slave.Close()

		return nil, fmt.Errorf("device: put pty slave in raw mode: %w", err)
	}

	return &PTY{master: master, slave: slave}, nil
}

// Slave returns the file test code writes raw float32 samples to.
func (p *PTY) Slave() *os.File { return p.slave }

// Close releases both ends of the pty pair.
func (p *PTY) Close() error {
	err1 := p.master.Close()
	err2 := p.slave.Close()

	if err1 != nil {
		return err1
	}

	return err2
}

func (p *PTY) Enumerate(direction Direction, fs float64, channels int) ([]Info, error) {
	return []Info{{
		Identity:          Identity{Name: "pty", Driver: "pty", Direction: direction},
		MaxInputChannels:  1,
		MaxOutputChannels: 1,
		SupportedRates:    []float64{fs},
	}}, nil
}

func (p *PTY) Default(direction Direction) (Info, bool, error) {
	infos, _ := p.Enumerate(direction, 0, 1)

	return infos[0], true, nil
}

func (p *PTY) Open(_ Identity, _ float64, samplesPerBuf int, channels int) (Stream, error) {
	return &ptyStream{pty: p, frameSize: samplesPerBuf * channels}, nil
}

func (p *PTY) AmplitudeBounds() (min, max fme.Sample) {
	return -1, 1
}

type ptyStream struct {
	pty       *PTY
	frameSize int
}

func (s *ptyStream) Read(ctx context.Context, out []fme.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := make([]byte, len(out)*4)

	if _, err := readFull(s.pty.master, raw); err != nil {
		return &fme.DeviceError{Op: "read", Err: err}
	}

	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = fme.Sample(float32frombits(bits))
	}

	return nil
}

func (s *ptyStream) Write(ctx context.Context, in []fme.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := make([]byte, len(in)*4)

	for i, v := range in {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], float32bits(v))
	}

	if _, err := s.pty.master.Write(raw); err != nil {
		return &fme.DeviceError{Op: "write", Err: err}
	}

	return nil
}

func (s *ptyStream) Close() error {
	return nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0

	for total < len(buf) {
		n, err := f.Read(buf[total:])
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}

func float32bits(f fme.Sample) uint32 {
	return math.Float32bits(float32(f))
}

func float32frombits(b uint32) float32 {
	return math.Float32frombits(b)
}
