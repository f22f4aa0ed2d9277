// Package validator implements the Sequence Validator stage (spec §4.5):
// it consumes the tone stream and matches five-tone windows per the
// TR-BOS FME rules, handling the repetition tone "R" and the digit-0
// mapping.
//
// Open Question resolved here (spec §4.5 prose vs. spec §8 scenario 2):
// a candidate repetition pair is recognized when two consecutive tones
// fall within DeltaTMaxTwice of each other AND either (a) they share the
// same raw search-tone slot, or (b) the second tone's slot is the
// dedicated repetition-tone slot. In both cases the emitted CodeTone
// inherits the predecessor's digit and reported frequency, which is what
// spec §8 scenario 2 checks ("the second tone's detected frequency must
// equal the first tone's").
package validator

import (
	"time"

	"github.com/erl987fme/fmed/internal/config"
	"github.com/erl987fme/fmed/internal/fme"
)

// Rules is the subset of config.FMERules the validator needs, expressed in
// time.Duration for convenience.
type Rules struct {
	CodeLength        int
	ExcessTime        time.Duration
	DeltaTMaxTwice    time.Duration
	MinLength         time.Duration
	MaxLength         time.Duration
	MaxToneLevelRatio float64
}

// FromConfig converts a config.FMERules into Rules.
func FromConfig(c config.FMERules) Rules {
	return Rules{
		CodeLength:        c.CodeLength,
		ExcessTime:        msToDuration(c.ExcessTimeMS),
		DeltaTMaxTwice:    msToDuration(c.DeltaTMaxTwiceMS),
		MinLength:         msToDuration(c.MinLengthMS),
		MaxLength:         msToDuration(c.MaxLengthMS),
		MaxToneLevelRatio: c.MaxToneLevelRatio,
	}
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Validator is the Sequence Validator stage. Not safe for concurrent use;
// the supervisor gives it a single worker.
type Validator struct {
	rules   Rules
	zeroIdx int
	repIdx  int

	buf []fme.Tone // candidate sequence in progress
}

// New builds a Validator. zeroIdx and repIdx are the search-tone slot
// indices spec §4.5 calls out (digit 0 and the repetition tone); pass
// config.ZeroToneIndex and config.RepetitionToneIndex for the stock
// TR-BOS layout.
func New(rules Rules, zeroIdx, repIdx int) *Validator {
	return &Validator{rules: rules, zeroIdx: zeroIdx, repIdx: repIdx}
}

// Push feeds newly arrived tones, in calculated-start order, and returns
// every Sequence validated as a result.
func (v *Validator) Push(tones []fme.Tone) []fme.Sequence {
	var out []fme.Sequence

	for _, t := range tones {
		if seq, ok := v.accept(t); ok {
			out = append(out, seq)
		}
	}

	return out
}

func (v *Validator) accept(t fme.Tone) (fme.Sequence, bool) {
	if !v.lengthOK(t) {
		v.buf = nil

		return fme.Sequence{}, false
	}

	if len(v.buf) == 0 {
		v.buf = []fme.Tone{t}

		return fme.Sequence{}, false
	}

	last := v.buf[len(v.buf)-1]
	gap := t.CalculatedStart.Sub(last.CalculatedStart)

	if gap > v.rules.DeltaTMaxTwice {
		// Too far from the running candidate: it can't complete. Start a
		// fresh candidate with this tone instead of discarding outright.
		v.buf = []fme.Tone{t}

		return fme.Sequence{}, false
	}

	first := v.buf[0]
	if !v.levelRatioOK(first, t) {
		v.buf = []fme.Tone{t}

		return fme.Sequence{}, false
	}

	v.buf = append(v.buf, t)

	if len(v.buf) < v.rules.CodeLength {
		return fme.Sequence{}, false
	}

	seq := v.build(v.buf)
	v.buf = nil

	return seq, true
}

func (v *Validator) lengthOK(t fme.Tone) bool {
	d := t.Duration()

	return d >= v.rules.MinLength-v.rules.ExcessTime && d <= v.rules.MaxLength+v.rules.ExcessTime
}

func (v *Validator) levelRatioOK(first, t fme.Tone) bool {
	if first.AbsLevel == 0 {
		return false
	}

	ratio := t.AbsLevel / first.AbsLevel

	return ratio >= 1/v.rules.MaxToneLevelRatio && ratio <= v.rules.MaxToneLevelRatio
}

func (v *Validator) build(tones []fme.Tone) fme.Sequence {
	codeTones := make([]fme.CodeTone, len(tones))

	prevDigit := -1
	prevFreq := 0.0
	prevStart := tones[0].CalculatedStart

	for i, t := range tones {
		repeated := i > 0 && t.CalculatedStart.Sub(tones[i-1].CalculatedStart) <= v.rules.DeltaTMaxTwice &&
			(t.ToneID == tones[i-1].ToneID || t.ToneID == v.repIdx)

		var digit int

		var freq float64

		switch {
		case repeated:
			digit = prevDigit
			freq = prevFreq
		case t.ToneID == v.zeroIdx:
			digit = 0
			freq = t.Frequency
		default:
			digit = t.ToneID + 1
			freq = t.Frequency
		}

		var period time.Duration
		if i > 0 {
			period = t.CalculatedStart.Sub(prevStart)
		}

		codeTones[i] = fme.CodeTone{
			Digit:     digit,
			Length:    t.Duration(),
			Period:    period,
			Frequency: freq,
			AbsLevel:  t.AbsLevel,
		}

		prevDigit, prevFreq, prevStart = digit, freq, t.CalculatedStart
	}

	return fme.Sequence{
		Start: tones[0].ReferenceStart,
		Code:  fme.CodeData{Tones: codeTones},
	}
}
