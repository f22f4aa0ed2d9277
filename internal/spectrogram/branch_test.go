package spectrogram

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func TestBranch_FrameTimingInvariant(t *testing.T) {
	const fs = 8000.0

	b := NewBranch(BranchParams{WindowLengthMS: 20, FFTSize: 256, Overlap: 0.5, Delta: 0.1, MaxNumPeaks: 4}, fs)

	n := 4000
	samples := make([]fme.Sample, n)
	calc := make([]time.Time, n)

	base := time.Now()
	for i := range samples {
		samples[i] = fme.Sample(math.Sin(2 * math.Pi * 1000 * float64(i) / fs))
		calc[i] = base.Add(time.Duration(float64(i) / fs * float64(time.Second)))
	}

	frames := b.Push(fme.ProcessedFrame{Calculated: calc, Samples: samples, Fs: fs})
	require.GreaterOrEqual(t, len(frames), 2)

	samplePeriod := time.Duration(float64(time.Second) / fs)
	expectedHop := b.HopDuration()

	for i := 1; i < len(frames); i++ {
		got := frames[i].Calculated.Sub(frames[i-1].Calculated)
		diff := got - expectedHop

		if diff < 0 {
			diff = -diff
		}

		require.LessOrEqualf(t, diff, samplePeriod, "frame %d: hop %v deviates from expected %v by more than one sample period", i, got, expectedHop)
	}
}

func TestBranch_PeaksWithinNyquist(t *testing.T) {
	const fs = 8000.0

	b := NewBranch(BranchParams{WindowLengthMS: 20, FFTSize: 512, Overlap: 0.5, Delta: 0.05, MaxNumPeaks: 4}, fs)

	n := 2000
	samples := make([]fme.Sample, n)
	calc := make([]time.Time, n)

	base := time.Now()
	for i := range samples {
		samples[i] = fme.Sample(math.Sin(2 * math.Pi * 1400 * float64(i) / fs))
		calc[i] = base.Add(time.Duration(float64(i) / fs * float64(time.Second)))
	}

	frames := b.Push(fme.ProcessedFrame{Calculated: calc, Samples: samples, Fs: fs})

	for _, f := range frames {
		for _, p := range f.Peaks {
			require.GreaterOrEqual(t, p.Frequency, 0.0)
			require.LessOrEqual(t, p.Frequency, fs/2)
		}
	}
}
