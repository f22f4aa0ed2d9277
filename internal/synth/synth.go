// Package synth generates synthetic TR-BOS FME audio for self-test and
// property-based round-trip testing, grounded on
// original_source/Core/ProduceFMECode.h and FMEGenerateParam.h: a
// five-tone sequence is rendered as sine tones at the digit frequencies,
// optionally perturbed in amplitude, frequency and timing, then repeated
// once after a pause exactly as TR-BOS FME requires.
package synth

import (
	"math"

	"github.com/erl987fme/fmed/internal/fme"
)

// Params mirrors the fields ProduceFMECode.h's generator needs: sampling
// rate, nominal tone length, inter-cycle pause, and the digit-to-frequency
// table (11 entries: "1".."9", "0", "R", matching ConvertTonesToFreqs'
// convention of storing "0" at index 9 and "R" at index 10).
type Params struct {
	Fs          float64
	ToneLength  float64 // seconds
	PauseTime   float64 // seconds before the repeated cycle
	ToneFreqs   []float64
	PctLoudness float64 // 0-100, relative to full scale
}

// Deviation perturbs one tone's rendering away from its nominal values,
// mirroring ProduceFMECode.h's per-tone toneAmp/deltaF/deltaLength/
// deltaCycle parameters — used to synthesize near-miss sequences for
// negative-detection tests.
type Deviation struct {
	AmplitudePct float64 // relative amplitude deviation, percent
	FreqPct      float64 // relative frequency deviation, percent
	LengthDelta  float64 // seconds added to tone length
	CycleDelta   float64 // seconds added to cycle (start-to-start) time
}

// Generate renders digits (values 0-9) as a one-repetition TR-BOS FME
// sequence at p.Fs, with an optional deviation per tone (nil entries or a
// nil slice mean "no deviation"). It returns the rendered samples and the
// offset (in samples) of the second repetition's start, matching
// ProduceFMECode.h's seqStartOffset output parameter.
func Generate(p Params, digits []int, deviations []Deviation) ([]fme.Sample, int) {
	freqs := convertDigitsToFreqs(p.ToneFreqs, digits)

	if deviations == nil {
		deviations = make([]Deviation, len(digits))
	}

	cycle := renderCycle(p, freqs, deviations)

	pauseSamples := int(p.Fs * p.PauseTime)
	total := pauseSamples + len(cycle) + pauseSamples + len(cycle)

	out := make([]fme.Sample, total)
	copy(out[pauseSamples:], cycle)
	copy(out[pauseSamples+len(cycle)+pauseSamples:], cycle)

	return out, pauseSamples + len(cycle) + pauseSamples
}

// convertDigitsToFreqs maps digits (0-9) to ToneFreqs slots, inserting the
// repetition-tone frequency whenever a digit repeats its predecessor
// (ConvertTonesToFreqs' "handle tone repetitions" step); digit 0 maps to
// ToneFreqs[9] (the "handle tone 0" step).
func convertDigitsToFreqs(toneFreqs []float64, digits []int) []float64 {
	const (
		zeroSlot = 9
		repSlot  = 10
	)

	out := make([]float64, len(digits))

	for i, d := range digits {
		slot := d - 1
		if d == 0 {
			slot = zeroSlot
		}

		if i > 0 && d == digits[i-1] {
			slot = repSlot
		}

		out[i] = toneFreqs[slot]
	}

	return out
}

func renderCycle(p Params, freqs []float64, deviations []Deviation) []fme.Sample {
	const fullScaleLoudness = 100.0

	amplitude := fme.Sample(p.PctLoudness / fullScaleLoudness)

	var samples []fme.Sample

	for i, f := range freqs {
		dev := deviations[i]

		toneLen := p.ToneLength + dev.LengthDelta
		toneAmp := amplitude * fme.Sample(1+dev.AmplitudePct/100)
		toneFreq := f * (1 + dev.FreqPct/100)

		cycleLen := p.ToneLength + dev.CycleDelta
		if cycleLen < toneLen {
			cycleLen = toneLen
		}

		cycleSamples := int(p.Fs * cycleLen)
		toneSamples := int(p.Fs * toneLen)

		tone := make([]fme.Sample, cycleSamples)
		for n := 0; n < toneSamples; n++ {
			tone[n] = toneAmp * fme.Sample(math.Sin(2*math.Pi*toneFreq*float64(n)/p.Fs))
		}

		samples = append(samples, tone...)
	}

	return samples
}
