// Package device implements the AudioDeviceAdapter contract spec §6
// describes as an external collaborator: device enumeration, stream open/
// read/close, and the min/max sample-amplitude constants for the sample
// type in use (spec §9, "Template-over-sample-type").
package device

import (
	"context"

	"github.com/erl987fme/fmed/internal/fme"
)

// Identity names a device the way spec §6 requires: (name, driver,
// direction). An empty Name means "system default".
type Identity struct {
	Name      string
	Driver    string
	Direction Direction
}

// Direction is whether a device identity names an input or output stream.
type Direction int

const (
	Input Direction = iota
	Output
)

// Info describes one enumerated device and the sampling rates it was
// queried against.
type Info struct {
	Identity Identity
	MaxInputChannels  int
	MaxOutputChannels int
	SupportedRates    []float64
}

// Stream is an opened, ready-to-read-or-write audio stream.
type Stream interface {
	// Read blocks until exactly len(buf) samples have been captured,
	// or the stream is closed, or ctx is done.
	Read(ctx context.Context, buf []fme.Sample) error
	// Write blocks until exactly len(buf) samples have been written.
	Write(ctx context.Context, buf []fme.Sample) error
	Close() error
}

// Adapter is the AudioDeviceAdapter contract from spec §6. Implementations:
// Portaudio (internal/device/portaudio.go, the primary cross-platform
// backend) and PTY (internal/device/pty.go, a loopback test fake).
type Adapter interface {
	// Enumerate lists devices supporting the given (Fs, channels)
	// combination. An implementation that cannot pre-filter by rate may
	// return all devices and let Open fail for unsupported combinations.
	Enumerate(direction Direction, fs float64, channels int) ([]Info, error)
	// Default returns the host's default device for direction, or
	// ok=false if none is configured.
	Default(direction Direction) (Info, bool, error)
	// Open opens a stream. device.Name == "" selects the default device.
	Open(device Identity, fs float64, samplesPerBuf int, channels int) (Stream, error)
	// AmplitudeBounds reports the minimum and maximum representable sample
	// values for the sample format this adapter captures in.
	AmplitudeBounds() (min, max fme.Sample)
}
