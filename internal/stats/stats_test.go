package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func stockToneFreqs() []float64 {
	return []float64{
		2400, 1060, 1160, 1270, 1400,
		1530, 1670, 1830, 2000, 2200, // index 9, "0"
		1800, // index 10, "R"
	}
}

func TestAnalyzer_FreqStatistics_TracksDeviation(t *testing.T) {
	a := NewAnalyzer(0.08, stockToneFreqs(), 0, 30, 3)

	digits := []int{2, 5, 6, 3, 4}

	a.Push(Observation{
		Digits:          digits,
		FoundFreq:       []float64{1061, 1399, 1532, 1158, 1270},
		GivenFreqDevPct: []float64{0, 0, 0, 0, 0},
		FoundLength:     []float64{0.08, 0.08, 0.08, 0.08, 0.08},
		GivenLengthDev:  []float64{0, 0, 0, 0, 0},
		FoundCycle:      []float64{0.08, 0.08, 0.08, 0.08, 0.08},
		GivenCycleDev:   []float64{0, 0, 0, 0, 0},
		AbsToneLevel:    []fme.Sample{1.0, 0.9, 0.95, 0.8, 0.85},
		SNR:             15,
	})

	freqStats := a.FreqStatistics()
	require.Greater(t, freqStats.Max, 0.0)
	require.LessOrEqual(t, freqStats.Max, 3.0)
}

func TestAnalyzer_ToneLevelHistogram_BinsBySNR(t *testing.T) {
	a := NewAnalyzer(0.08, stockToneFreqs(), 0, 30, 3)

	push := func(snr float64, levels []fme.Sample) {
		a.Push(Observation{
			Digits:          []int{2, 5, 6, 3, 4},
			FoundFreq:       []float64{1060, 1400, 1530, 1160, 1270},
			GivenFreqDevPct: []float64{0, 0, 0, 0, 0},
			FoundLength:     []float64{0.08, 0.08, 0.08, 0.08, 0.08},
			GivenLengthDev:  []float64{0, 0, 0, 0, 0},
			FoundCycle:      []float64{2, 2, 2, 2, 2}, // >= 1s: excluded from cycle stats
			GivenCycleDev:   []float64{0, 0, 0, 0, 0},
			AbsToneLevel:    levels,
			SNR:             snr,
		})
	}

	push(1, []fme.Sample{1.0, 0.5, 0.5, 0.5, 0.5})  // low SNR bin
	push(29, []fme.Sample{1.0, 0.9, 0.9, 0.9, 0.9}) // high SNR bin

	hist := a.ToneLevelHistogram()
	require.Len(t, hist, 3)

	require.InDelta(t, 0.5, hist[0].Mean, 1e-9)
	require.InDelta(t, float64(fme.Sample(0.9)), hist[2].Mean, 1e-9)

	require.Zero(t, a.CycleStatistics())
}

func TestAnalyzer_Push_IgnoresZeroReferenceLevel(t *testing.T) {
	a := NewAnalyzer(0.08, stockToneFreqs(), 0, 30, 2)

	a.Push(Observation{
		Digits:          []int{2},
		FoundFreq:       []float64{1060},
		GivenFreqDevPct: []float64{0},
		FoundLength:     []float64{0.08},
		GivenLengthDev:  []float64{0},
		FoundCycle:      []float64{2},
		GivenCycleDev:   []float64{0},
		AbsToneLevel:    []fme.Sample{0},
		SNR:             10,
	})

	for _, s := range a.ToneLevelHistogram() {
		require.Zero(t, s)
	}
}
