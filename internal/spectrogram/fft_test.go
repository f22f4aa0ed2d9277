package spectrogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFFT_SingleToneBinDominates(t *testing.T) {
	const (
		n  = 64
		fs = 8000.0
		f0 = 1000.0
	)

	re := make([]float64, n)
	im := make([]float64, n)

	for i := range re {
		re[i] = math.Sin(2 * math.Pi * f0 * float64(i) / fs)
	}

	fft(re, im)

	mags := make([]float64, n/2)
	for i := range mags {
		mags[i] = math.Hypot(re[i], im[i])
	}

	peakBin := 0
	for i, m := range mags {
		if m > mags[peakBin] {
			peakBin = i
		}
	}

	expectedBin := int(math.Round(f0 * n / fs))
	require.InDelta(t, expectedBin, peakBin, 1)
}

func TestNextPow2(t *testing.T) {
	require.Equal(t, 1, nextPow2(1))
	require.Equal(t, 8, nextPow2(5))
	require.Equal(t, 1024, nextPow2(1024))
	require.Equal(t, 2048, nextPow2(1025))
}

func TestHammingWindow_Endpoints(t *testing.T) {
	w := hammingWindow(16)
	require.InDelta(t, 0.08, w[0], 1e-9)
	require.Len(t, w, 16)
}
