package capture

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/device"
	"github.com/erl987fme/fmed/internal/fme"
	"github.com/erl987fme/fmed/internal/logctx"
)

func TestReader_StartNext_DeliversCapturedFrames(t *testing.T) {
	pty, err := device.NewPTY()
	require.NoError(t, err)
	defer pty.Close()

	r := New(pty, fme.RuntimeErrorSinkFunc(func(err error) {
		t.Errorf("unexpected runtime error: %v", err)
	}), logctx.New("error", io.Discard))

	const samplesPerBuf = 8

	require.NoError(t, r.SetParams(Params{
		Fs:                8000,
		SamplesPerBuf:     samplesPerBuf,
		Channels:          1,
		MaxMissedAttempts: 3,
		MaxQueueLength:    4,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, r.Start(ctx))
	defer r.Stop()

	go feedFloat32s(t, pty, makeSineBuf(samplesPerBuf, 1000, 8000))

	frame, err := r.Next()
	require.NoError(t, err)
	require.Len(t, frame.Samples, samplesPerBuf)
	require.Len(t, frame.Calculated, samplesPerBuf)
	require.Equal(t, 8000.0, frame.Fs)

	for i := 1; i < len(frame.Calculated); i++ {
		require.True(t, frame.Calculated[i].After(frame.Calculated[i-1]))
	}
}

func TestReader_Stop_UnblocksNext(t *testing.T) {
	pty, err := device.NewPTY()
	require.NoError(t, err)
	defer pty.Close()

	r := New(pty, fme.RuntimeErrorSinkFunc(func(error) {}), logctx.New("error", io.Discard))

	require.NoError(t, r.SetParams(Params{
		Fs: 8000, SamplesPerBuf: 4, Channels: 1, MaxMissedAttempts: 3, MaxQueueLength: 4,
	}))

	require.NoError(t, r.Start(context.Background()))
	r.Stop()

	_, err = r.Next()
	require.ErrorIs(t, err, fme.ErrStopped)
}

func makeSineBuf(n int, f0, fs float64) []fme.Sample {
	out := make([]fme.Sample, n)
	for i := range out {
		out[i] = fme.Sample(math.Sin(2 * math.Pi * f0 * float64(i) / fs))
	}

	return out
}

func feedFloat32s(t *testing.T, pty *device.PTY, samples []fme.Sample) {
	t.Helper()

	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(float32(s)))
	}

	if _, err := pty.Slave().Write(raw); err != nil {
		t.Logf("feed write: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
}
