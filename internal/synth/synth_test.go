package synth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stockToneFreqs() []float64 {
	return []float64{
		2400, 1060, 1160, 1270, 1400,
		1530, 1670, 1830, 2000, 2200, // index 9, "0"
		1800, // index 10, "R"
	}
}

func TestConvertDigitsToFreqs_Repetition(t *testing.T) {
	freqs := convertDigitsToFreqs(stockToneFreqs(), []int{7, 7, 1, 2, 3})

	require.Equal(t, []float64{1670, 1800, 2400, 1060, 1160}, freqs)
}

func TestConvertDigitsToFreqs_ZeroDigit(t *testing.T) {
	freqs := convertDigitsToFreqs(stockToneFreqs(), []int{2, 0, 0, 0, 0})

	// only the first "0" uses the dedicated zero frequency; the rest repeat.
	require.Equal(t, []float64{1060, 2200, 1800, 1800, 1800}, freqs)
}

func TestGenerate_LengthAndRepetition(t *testing.T) {
	p := Params{
		Fs:          8000,
		ToneLength:  0.08,
		PauseTime:   0.5,
		ToneFreqs:   stockToneFreqs(),
		PctLoudness: 80,
	}

	samples, repeatOffset := Generate(p, []int{2, 5, 6, 3, 4}, nil)

	pauseSamples := int(p.Fs * p.PauseTime)
	cycleSamples := 5 * int(p.Fs*p.ToneLength)

	require.Equal(t, pauseSamples+cycleSamples+pauseSamples+cycleSamples, len(samples))
	require.Equal(t, pauseSamples+cycleSamples+pauseSamples, repeatOffset)

	// the silence gap before the first tone must be exactly zero-valued.
	for i := 0; i < pauseSamples; i++ {
		require.Zero(t, samples[i])
	}
}
