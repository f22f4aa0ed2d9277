// Package downsample implements the Dual Downsampler stage (spec §4.2):
// two streaming FIR low-pass filters with integer decimation, one feeding
// the processing (detection) branch and one feeding the recording branch.
package downsample

import "math"

// DesignLowPass builds a windowed-sinc FIR low-pass filter (Hamming
// window) for the given cutoff and transition width, both in Hz, at
// sampling rate fs. This is the standard textbook design the teacher's own
// DSP code (src/dsp.go) uses for its filters; the math is the same
// regardless of source language.
func DesignLowPass(fs, cutoff, transWidth float64) []float64 {
	numTaps := estimateNumTaps(fs, transWidth)
	if numTaps%2 == 0 {
		numTaps++ // odd length gives a Type-I linear-phase filter
	}

	taps := make([]float64, numTaps)
	mid := (numTaps - 1) / 2
	fc := cutoff / fs // normalized cutoff, cycles/sample

	for n := 0; n < numTaps; n++ {
		m := n - mid
		var sinc float64
		if m == 0 {
			sinc = 2 * fc
		} else {
			sinc = math.Sin(2*math.Pi*fc*float64(m)) / (math.Pi * float64(m))
		}

		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/float64(numTaps-1))
		taps[n] = sinc * window
	}

	normalize(taps)

	return taps
}

func estimateNumTaps(fs, transWidth float64) int {
	// Standard Hamming-window transition-width estimate: N ≈ 3.3 * fs / Δf.
	n := int(3.3 * fs / transWidth)
	if n < 5 {
		n = 5
	}

	return n
}

func normalize(taps []float64) {
	var sum float64
	for _, t := range taps {
		sum += t
	}

	if sum == 0 {
		return
	}

	for i := range taps {
		taps[i] /= sum
	}
}

// FIRDecimator is a streaming FIR filter with integer decimation: each call
// to Process consumes whatever samples arrive, advances the filter state
// across calls, and emits floor(len(input)/D) output samples (spec §4.2).
type FIRDecimator struct {
	taps  []float64
	D     int
	state []float64 // ring buffer of the last len(taps)-1 input samples
}

// NewFIRDecimator builds a decimator for the given taps and decimation
// factor D.
func NewFIRDecimator(taps []float64, d int) *FIRDecimator {
	return &FIRDecimator{
		taps:  taps,
		D:     d,
		state: make([]float64, len(taps)-1),
	}
}

// Process filters and decimates in, returning floor(len(in)/D) outputs
// computed continuously across calls (the filter state carries over).
func (f *FIRDecimator) Process(in []float64) []float64 {
	n := len(f.state) + len(in)
	extended := make([]float64, n)
	copy(extended, f.state)
	copy(extended[len(f.state):], in)

	numSamples := len(in)
	numOut := numSamples / f.D

	out := make([]float64, numOut)

	// extended[i] holds input sample (i - (len(taps)-1)) relative to the
	// first new sample; the first convolvable output center is at index
	// len(taps)-1 in extended, i.e. the first new input sample.
	for k := 0; k < numOut; k++ {
		center := len(f.taps) - 1 + k*f.D
		var acc float64

		for j, tap := range f.taps {
			acc += tap * extended[center-j]
		}

		out[k] = acc
	}

	// Carry over the last len(taps)-1 samples of `extended` as state for
	// the next call.
	if len(f.state) > 0 {
		copy(f.state, extended[len(extended)-len(f.state):])
	}

	return out
}
