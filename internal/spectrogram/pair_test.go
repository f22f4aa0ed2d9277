package spectrogram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func TestPair_Push_BothBranchesIndependentlyProduceFrames(t *testing.T) {
	const fs = 8000.0

	p := NewPair(PairParams{
		FineTime: BranchParams{WindowLengthMS: 10, Overlap: 0.5, Delta: 0.1, MaxNumPeaks: 3},
		FineFreq: BranchParams{WindowLengthMS: 50, Overlap: 0.5, Delta: 0.1, MaxNumPeaks: 3},
	}, fs)

	require.Greater(t, p.FineFreqHop(), p.FineTimeHop())

	now := time.Now()

	const n = 2000

	samples := make([]fme.Sample, n)
	calc := make([]time.Time, n)

	for i := range samples {
		calc[i] = now.Add(time.Duration(i) * time.Second / fs)
	}

	fineTime, fineFreq := p.Push(fme.ProcessedFrame{Samples: samples, Calculated: calc, Fs: fs})

	require.NotEmpty(t, fineTime)
	require.NotEmpty(t, fineFreq)

	for i := 1; i < len(fineTime); i++ {
		require.False(t, fineTime[i].Calculated.Before(fineTime[i-1].Calculated))
	}

	for i := 1; i < len(fineFreq); i++ {
		require.False(t, fineFreq[i].Calculated.Before(fineFreq[i-1].Calculated))
	}
}
