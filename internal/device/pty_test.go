package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func TestPTY_WriteRead_RoundTrips(t *testing.T) {
	p, err := NewPTY()
	require.NoError(t, err)
	defer p.Close()

	stream, err := p.Open(Identity{}, 8000, 4, 1)
	require.NoError(t, err)

	ctx := context.Background()

	sent := []fme.Sample{0.25, -0.5, 1, -1}

	done := make(chan error, 1)

	go func() {
		done <- stream.Write(ctx, sent)
	}()

	got := make([]fme.Sample, len(sent))
	require.NoError(t, stream.Read(ctx, got))
	require.NoError(t, <-done)

	require.InDeltaSlice(t, sent, got, 1e-6)
}

func TestPTY_Enumerate_ReportsSingleDevice(t *testing.T) {
	p, err := NewPTY()
	require.NoError(t, err)
	defer p.Close()

	infos, err := p.Enumerate(Input, 8000, 1)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "pty", infos[0].Identity.Name)
}
