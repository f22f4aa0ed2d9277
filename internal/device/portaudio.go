package device

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/erl987fme/fmed/internal/fme"
)

// Portaudio is the Adapter implementation spec §6 anticipates as "the host
// audio driver (portable audio I/O library)". It is the one component the
// teacher's go.mod declared but never imported; this is that wiring.
type Portaudio struct {
	mu   sync.Mutex // serializes start/stop/read/status per spec §5
	init bool
}

// NewPortaudio initializes the portaudio library. Callers must call Close
// exactly once when done.
func NewPortaudio() (*Portaudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &fme.DeviceError{Op: "initialize", Err: err}
	}

	return &Portaudio{init: true}, nil
}

// Close terminates the portaudio library.
func (p *Portaudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.init {
		return nil
	}

	p.init = false

	return portaudio.Terminate()
}

func (p *Portaudio) Enumerate(direction Direction, fs float64, channels int) ([]Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, &fme.DeviceError{Op: "enumerate", Err: err}
	}

	var out []Info

	for _, d := range devs {
		if direction == Input && d.MaxInputChannels < channels {
			continue
		}

		if direction == Output && d.MaxOutputChannels < channels {
			continue
		}

		out = append(out, Info{
			Identity: Identity{
				Name:      d.Name,
				Driver:    d.HostApi.Name,
				Direction: direction,
			},
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			SupportedRates:    []float64{d.DefaultSampleRate},
		})
	}

	return out, nil
}

func (p *Portaudio) Default(direction Direction) (Info, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var (
		d   *portaudio.DeviceInfo
		err error
	)

	if direction == Input {
		d, err = portaudio.DefaultInputDevice()
	} else {
		d, err = portaudio.DefaultOutputDevice()
	}

	if err != nil {
		return Info{}, false, nil //nolint:nilerr // no default device configured is not fatal
	}

	return Info{
		Identity: Identity{Name: d.Name, Driver: d.HostApi.Name, Direction: direction},
		MaxInputChannels:  d.MaxInputChannels,
		MaxOutputChannels: d.MaxOutputChannels,
		SupportedRates:    []float64{d.DefaultSampleRate},
	}, true, nil
}

func (p *Portaudio) Open(ident Identity, fs float64, samplesPerBuf int, channels int) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dev, err := resolveDevice(ident)
	if err != nil {
		return nil, &fme.DeviceError{Op: "open", Err: err}
	}

	params := portaudio.StreamParameters{ //nolint:exhaustruct
		SampleRate:      fs,
		FramesPerBuffer: samplesPerBuf,
	}

	if ident.Direction == Input {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		}
	} else {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowOutputLatency,
		}
	}

	buf := make([]fme.Sample, samplesPerBuf*channels)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, &fme.DeviceError{Op: "open", Err: err}
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()

		return nil, &fme.DeviceError{Op: "start", Err: err}
	}

	return &portaudioStream{stream: stream, buf: buf}, nil
}

func (p *Portaudio) AmplitudeBounds() (min, max fme.Sample) {
	return -1, 1
}

func resolveDevice(ident Identity) (*portaudio.DeviceInfo, error) {
	if ident.Name == "" {
		if ident.Direction == Input {
			return portaudio.DefaultInputDevice()
		}

		return portaudio.DefaultOutputDevice()
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	for _, d := range devs {
		if d.Name == ident.Name {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device %q not found", ident.Name)
}

type portaudioStream struct {
	stream *portaudio.Stream
	buf    []fme.Sample
}

func (s *portaudioStream) Read(ctx context.Context, out []fme.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(out) != len(s.buf) {
		return fmt.Errorf("device: read buffer size mismatch: want %d, got %d", len(s.buf), len(out))
	}

	if err := s.stream.Read(); err != nil {
		return &fme.DeviceError{Op: "read", Err: err}
	}

	copy(out, s.buf)

	return nil
}

func (s *portaudioStream) Write(ctx context.Context, in []fme.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	copy(s.buf, in)

	if err := s.stream.Write(); err != nil {
		return &fme.DeviceError{Op: "write", Err: err}
	}

	return nil
}

func (s *portaudioStream) Close() error {
	return s.stream.Close()
}

// SnapRate picks the highest candidate rate also present in supported,
// matching the Supervisor's "highest supported standard sampling rate"
// selection (spec §4.1): candidates is assumed sorted descending.
func SnapRate(candidates []float64, supported []float64) (float64, bool) {
	for _, c := range candidates {
		for _, s := range supported {
			if math.Abs(c-s) < 1e-6 {
				return c, true
			}
		}
	}

	return 0, false
}
