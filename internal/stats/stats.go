// Package stats accumulates detection-run statistics for self-test runs,
// grounded on original_source/UnitTests/StatisticalAnalysis.h: the
// deviation between a synthesized sequence's known ground truth and what
// the pipeline actually detected, tracked as running min/max/mean per
// metric plus a per-SNR-bin histogram of relative tone levels.
//
// The original accumulates with boost::accumulators; no example repo in
// the pack pulls in a statistics/accumulator library, and the running
// min/max/mean this package needs has no meaningful third-party
// alternative worth a dependency, so it is hand-rolled here.
package stats

import (
	"math"

	"github.com/erl987fme/fmed/internal/fme"
)

// accumulator tracks running min/max/mean, equivalent to the original's
// boost::accumulators::features<min, max, mean>.
type accumulator struct {
	min, max, sum float64
	n             int
}

func (a *accumulator) push(v float64) {
	if a.n == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}

	a.sum += v
	a.n++
}

// Summary reports min/max/mean (zero values if nothing was pushed).
type Summary struct {
	Min, Max, Mean float64
}

func (a *accumulator) summary() Summary {
	if a.n == 0 {
		return Summary{}
	}

	return Summary{Min: a.min, Max: a.max, Mean: a.sum / float64(a.n)}
}

// Analyzer accumulates deviation statistics across many synthesized
// self-test runs. Not safe for concurrent use.
type Analyzer struct {
	toneLength float64
	toneFreqs  []float64

	minSNR, maxSNR float64
	numBins        int

	freqDev   accumulator
	lengthDev accumulator
	cycleDev  accumulator

	levelBins []accumulator // relative tone level, binned by SNR
}

// NewAnalyzer builds an Analyzer. toneFreqs must have at least 11 entries
// (digits 1-9, "0", "R"), matching ConvertTonesToFreqs' table layout.
func NewAnalyzer(toneLength float64, toneFreqs []float64, minSNR, maxSNR float64, numBins int) *Analyzer {
	return &Analyzer{
		toneLength: toneLength,
		toneFreqs:  toneFreqs,
		minSNR:     minSNR,
		maxSNR:     maxSNR,
		numBins:    numBins,
		levelBins:  make([]accumulator, numBins),
	}
}

// Observation is one synthesized-vs-detected tone comparison.
type Observation struct {
	Digits         []int
	FoundFreq      []float64
	GivenFreqDevPct []float64 // percent, as synth.Deviation.FreqPct
	FoundLength    []float64 // seconds
	GivenLengthDev []float64 // seconds, as synth.Deviation.LengthDelta
	FoundCycle     []float64 // seconds, start-to-start; values >= 1s are treated as invalid
	GivenCycleDev  []float64 // seconds, as synth.Deviation.CycleDelta
	AbsToneLevel   []fme.Sample
	SNR            float64
}

// Push folds one Observation's deviations into the running statistics.
func (a *Analyzer) Push(o Observation) {
	for i := range o.FoundFreq {
		nominal := a.toneFreq(i, o.Digits) * (1 + o.GivenFreqDevPct[i]/100)
		a.freqDev.push(math.Abs(o.FoundFreq[i] - nominal))

		a.lengthDev.push(math.Abs(1000*o.FoundLength[i] - 1000*(a.toneLength+o.GivenLengthDev[i])))

		if o.FoundCycle[i] < 1 {
			a.cycleDev.push(math.Abs(1000*o.FoundCycle[i] - 1000*(a.toneLength+o.GivenCycleDev[i])))
		}
	}

	if len(o.AbsToneLevel) == 0 || o.AbsToneLevel[0] == 0 {
		return
	}

	bin := a.binFor(o.SNR)

	for i := 1; i < len(o.AbsToneLevel); i++ {
		a.levelBins[bin].push(float64(o.AbsToneLevel[i]) / float64(o.AbsToneLevel[0]))
	}
}

func (a *Analyzer) binFor(snr float64) int {
	bin := int(math.Floor(float64(a.numBins) * (snr - a.minSNR) / (a.maxSNR - a.minSNR)))
	if bin < 0 {
		return 0
	}

	if bin >= a.numBins {
		return a.numBins - 1
	}

	return bin
}

// toneFreq maps the digit at position i of a code to its nominal
// frequency, using the same digit-to-slot mapping synth.convertDigitsToFreqs
// applies (handles "0" and "R").
func (a *Analyzer) toneFreq(i int, digits []int) float64 {
	const (
		zeroSlot = 9
		repSlot  = 10
	)

	d := digits[i]
	slot := d - 1

	if d == 0 {
		slot = zeroSlot
	}

	if i > 0 && d == digits[i-1] {
		slot = repSlot
	}

	return a.toneFreqs[slot]
}

// FreqStatistics returns the frequency-deviation summary, in Hz.
func (a *Analyzer) FreqStatistics() Summary { return a.freqDev.summary() }

// LengthStatistics returns the tone-length-deviation summary, in ms.
func (a *Analyzer) LengthStatistics() Summary { return a.lengthDev.summary() }

// CycleStatistics returns the tone-cycle-deviation summary, in ms.
func (a *Analyzer) CycleStatistics() Summary { return a.cycleDev.summary() }

// ToneLevelHistogram returns one relative-level summary per SNR bin.
func (a *Analyzer) ToneLevelHistogram() []Summary {
	out := make([]Summary, len(a.levelBins))
	for i := range a.levelBins {
		out[i] = a.levelBins[i].summary()
	}

	return out
}
