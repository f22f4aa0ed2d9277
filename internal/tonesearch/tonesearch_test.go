package tonesearch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func TestBestMatch_WithinMaxDeltaF(t *testing.T) {
	peaks := []fme.Peak{{Frequency: 1055, Level: 1.0}, {Frequency: 2390, Level: 0.5}}

	peak, ok := bestMatch(peaks, 1060, 0.02)
	require.True(t, ok)
	require.Equal(t, 1055.0, peak.Frequency)

	_, ok = bestMatch(peaks, 1060, 0.001)
	require.False(t, ok)
}

func TestSearcher_StepProducesToneWithinMaxDeltaF(t *testing.T) {
	const fineTimeHop = 20 * time.Millisecond

	searchFreqs := []float64{2400, 1060, 1160, 1270, 1400, 1530, 1670, 1830, 2000, 2200, 1800}

	s := New(Params{
		SearchFreqs:             searchFreqs,
		MaxDeltaF:               0.02,
		MaxFreqDevConstrained:   0.3,
		MaxFreqDevUnconstrained: 0.05,
		NumNeighbours:           2,
		EvalToneLength:          80 * time.Millisecond,
	}, fineTimeHop)

	base := time.Now()

	const numFrames = 10

	var fineTime []fme.PeakFrame

	for i := 0; i < numFrames; i++ {
		ts := base.Add(time.Duration(i) * fineTimeHop)
		fineTime = append(fineTime, fme.PeakFrame{
			Reference:  ts,
			Calculated: ts,
			Peaks:      []fme.Peak{{Frequency: 1060, Level: 1.0}},
		})
	}

	fineFreq := []fme.PeakFrame{{
		Reference:  base,
		Calculated: base,
		Peaks:      []fme.Peak{{Frequency: 1060, Level: 1.0}},
	}, {
		Reference:  base.Add(9 * fineTimeHop),
		Calculated: base.Add(9 * fineTimeHop),
		Peaks:      []fme.Peak{{Frequency: 1060, Level: 1.0}},
	}}

	s.PushFineTime(fineTime)
	s.PushFineFreq(fineFreq)

	tones, err := s.Step()
	require.NoError(t, err)
	require.NotEmpty(t, tones)

	for _, tn := range tones {
		fk := searchFreqs[tn.ToneID]
		relErr := (tn.Frequency - fk) / fk

		if relErr < 0 {
			relErr = -relErr
		}

		require.LessOrEqual(t, relErr, 0.02)
	}
}

func TestSearcher_InsufficientLookahead(t *testing.T) {
	s := New(Params{
		SearchFreqs:    []float64{1060},
		MaxDeltaF:      0.02,
		NumNeighbours:  1,
		EvalToneLength: 100 * time.Millisecond,
	}, 20*time.Millisecond)

	s.PushFineTime([]fme.PeakFrame{{Calculated: time.Now()}})

	_, err := s.Step()
	require.ErrorIs(t, err, fme.ErrInsufficientLookahead)
}
