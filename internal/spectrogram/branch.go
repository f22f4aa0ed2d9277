// Package spectrogram implements the Spectrogram Pair stage (spec §4.3):
// two independently threaded STFT branches trading time resolution for
// frequency resolution, each emitting per-frame peak lists.
package spectrogram

import (
	"math"
	"time"

	"github.com/erl987fme/fmed/internal/fme"
)

// BranchParams configures one STFT branch.
type BranchParams struct {
	WindowLengthMS float64
	FFTSize        int
	Overlap        float64 // fraction in [0, 1)
	Delta          float64 // minimum prominence, fraction of peak magnitude
	MaxNumPeaks    int
}

// Branch runs one STFT configuration over a continuous processing-rate
// sample stream, sliding its window by (1-overlap)*windowLength each hop
// (spec §4.3, §8 "frame timing" property).
type Branch struct {
	params     BranchParams
	fs         float64
	windowLen  int // samples
	hop        int // samples
	fftSize    int
	window     []float64

	buf     []fme.Sample
	calcBuf []time.Time
}

// NewBranch builds a Branch for a processing stream at sampling rate fs.
func NewBranch(params BranchParams, fs float64) *Branch {
	windowLen := int(math.Round(params.WindowLengthMS / 1000 * fs))
	if windowLen < 2 {
		windowLen = 2
	}

	hop := int(math.Round(float64(windowLen) * (1 - params.Overlap)))
	if hop < 1 {
		hop = 1
	}

	fftSize := params.FFTSize
	if fftSize < windowLen {
		fftSize = nextPow2(windowLen)
	}

	return &Branch{
		params:    params,
		fs:        fs,
		windowLen: windowLen,
		hop:       hop,
		fftSize:   nextPow2(fftSize),
		window:    hammingWindow(windowLen),
	}
}

// HopDuration is the nominal time increment between consecutive frames,
// spec §8's "(1-overlap)*windowLength" property.
func (b *Branch) HopDuration() time.Duration {
	return time.Duration(float64(b.hop) / b.fs * float64(time.Second))
}

// Push appends newly arrived processing-stream samples and returns every
// complete STFT hop now available, in calculated-time order (spec §5,
// "frames exit in strictly non-decreasing calculated-time order").
func (b *Branch) Push(frame fme.ProcessedFrame) []fme.PeakFrame {
	b.buf = append(b.buf, frame.Samples...)
	b.calcBuf = append(b.calcBuf, frame.Calculated...)

	var out []fme.PeakFrame

	for len(b.buf) >= b.windowLen {
		out = append(out, b.analyze(b.buf[:b.windowLen], b.calcBuf[0]))

		b.buf = b.buf[b.hop:]
		b.calcBuf = b.calcBuf[b.hop:]
	}

	return out
}

func (b *Branch) analyze(segment []fme.Sample, start time.Time) fme.PeakFrame {
	re := make([]float64, b.fftSize)
	im := make([]float64, b.fftSize)

	for i, s := range segment {
		re[i] = float64(s) * b.window[i]
	}

	fft(re, im)

	mags := make([]float64, b.fftSize/2)

	var maxMag float64

	for i := range mags {
		m := math.Hypot(re[i], im[i])
		mags[i] = m

		if m > maxMag {
			maxMag = m
		}
	}

	peaks := pickPeaks(mags, maxMag, b.params.Delta, b.params.MaxNumPeaks, b.fs, b.fftSize)

	return fme.PeakFrame{
		Reference:  start,
		Calculated: start,
		Peaks:      peaks,
	}
}

// pickPeaks extracts up to maxPeaks local maxima whose prominence (distance
// to the nearest lower valley on the left, spec §4.3) exceeds delta*maxMag.
// Frames with more candidate peaks than maxPeaks allows are emitted empty —
// spec §4.3 treats them as noise.
func pickPeaks(mags []float64, maxMag, delta float64, maxPeaks int, fs float64, fftSize int) []fme.Peak {
	if maxMag <= 0 {
		return nil
	}

	threshold := delta * maxMag

	var candidates []int

	for i := 1; i < len(mags)-1; i++ {
		if mags[i] <= mags[i-1] || mags[i] <= mags[i+1] {
			continue
		}

		if !hasProminence(mags, i, threshold) {
			continue
		}

		candidates = append(candidates, i)
	}

	if len(candidates) > maxPeaks {
		return nil
	}

	peaks := make([]fme.Peak, 0, len(candidates))

	for _, i := range candidates {
		freq, mag := parabolicInterpolate(mags, i, fs, fftSize)
		peaks = append(peaks, fme.Peak{Frequency: freq, Level: mag / maxMag})
	}

	return peaks
}

// hasProminence walks left from peak i until it finds a valley (a local
// minimum) and reports whether the drop from the peak to that valley
// exceeds threshold.
func hasProminence(mags []float64, i int, threshold float64) bool {
	valley := mags[i]

	for j := i - 1; j >= 0; j-- {
		if mags[j] > mags[i] {
			break
		}

		if mags[j] < valley {
			valley = mags[j]
		}
	}

	return mags[i]-valley >= threshold
}

// parabolicInterpolate refines the bin index i into a fractional frequency
// and magnitude estimate using the standard three-point parabolic fit
// (spec §4.3, "parabolic interpolation is acceptable").
func parabolicInterpolate(mags []float64, i int, fs float64, fftSize int) (freq, mag float64) {
	if i <= 0 || i >= len(mags)-1 {
		return float64(i) * fs / float64(fftSize), mags[i]
	}

	alpha, beta, gamma := mags[i-1], mags[i], mags[i+1]
	denom := alpha - 2*beta + gamma

	if denom == 0 {
		return float64(i) * fs / float64(fftSize), beta
	}

	p := 0.5 * (alpha - gamma) / denom
	peakMag := beta - 0.25*(alpha-gamma)*p

	return (float64(i) + p) * fs / float64(fftSize), peakMag
}
