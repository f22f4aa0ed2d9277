package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erl987fme/fmed/internal/fme"
)

func testRules() Rules {
	return Rules{
		CodeLength:        5,
		ExcessTime:        5 * time.Millisecond,
		DeltaTMaxTwice:    700 * time.Millisecond,
		MinLength:         70 * time.Millisecond,
		MaxLength:         100 * time.Millisecond,
		MaxToneLevelRatio: 3.16,
	}
}

func tone(id int, start time.Time, dur time.Duration, freq, level float64) fme.Tone {
	return fme.Tone{
		ToneID:          id,
		ReferenceStart:  start,
		CalculatedStart: start,
		CalculatedEnd:   start.Add(dur),
		Frequency:       freq,
		AbsLevel:        level,
	}
}

func TestValidator_CleanDetect(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	cycle := 85 * time.Millisecond
	toneLen := 80 * time.Millisecond

	tones := []fme.Tone{
		tone(1, base, toneLen, 1060, 1.0),
		tone(4, base.Add(cycle), toneLen, 1400, 1.0),
		tone(5, base.Add(2*cycle), toneLen, 1530, 1.0),
		tone(2, base.Add(3*cycle), toneLen, 1160, 1.0),
		tone(3, base.Add(4*cycle), toneLen, 1270, 1.0),
	}

	var got []fme.Sequence
	for _, tn := range tones {
		got = append(got, v.Push([]fme.Tone{tn})...)
	}

	require.Len(t, got, 1)
	require.Equal(t, []int{2, 5, 6, 3, 4}, got[0].Code.Digits())
}

func TestValidator_Repetition(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	cycle := 85 * time.Millisecond
	toneLen := 80 * time.Millisecond

	tones := []fme.Tone{
		tone(6, base, toneLen, 1830, 1.0),
		tone(6, base.Add(cycle), toneLen, 1830, 1.0), // repetition, same raw slot
		tone(0, base.Add(2*cycle), toneLen, 2400, 1.0),
		tone(1, base.Add(3*cycle), toneLen, 1060, 1.0),
		tone(2, base.Add(4*cycle), toneLen, 1160, 1.0),
	}

	var got []fme.Sequence
	for _, tn := range tones {
		got = append(got, v.Push([]fme.Tone{tn})...)
	}

	require.Len(t, got, 1)
	require.Equal(t, []int{7, 7, 1, 2, 3}, got[0].Code.Digits())
	// spec §8 scenario 2: the second tone's detected frequency must equal the first's.
	require.Equal(t, got[0].Code.Tones[0].Frequency, got[0].Code.Tones[1].Frequency)
}

func TestValidator_ZeroTone(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	cycle := 85 * time.Millisecond
	toneLen := 80 * time.Millisecond

	tones := []fme.Tone{
		tone(1, base, toneLen, 1060, 1.0),
		tone(9, base.Add(cycle), toneLen, 2200, 1.0),  // "0"
		tone(10, base.Add(2*cycle), toneLen, 1800, 1.0), // "R" after "0"
		tone(10, base.Add(3*cycle), toneLen, 1800, 1.0), // "R" after "R"
		tone(10, base.Add(4*cycle), toneLen, 1800, 1.0),
	}

	var got []fme.Sequence
	for _, tn := range tones {
		got = append(got, v.Push([]fme.Tone{tn})...)
	}

	require.Len(t, got, 1)
	require.Equal(t, []int{2, 0, 0, 0, 0}, got[0].Code.Digits())
}

func TestValidator_LevelRatioReject(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	cycle := 85 * time.Millisecond
	toneLen := 80 * time.Millisecond

	tones := []fme.Tone{
		tone(1, base, toneLen, 1060, 1.0),
		tone(4, base.Add(cycle), toneLen, 1400, 1.0),
		tone(5, base.Add(2*cycle), toneLen, 1530, 1.0),
		tone(2, base.Add(3*cycle), toneLen, 1160, 1.0),
		tone(3, base.Add(4*cycle), toneLen, 1270, 0.1), // attenuated > maxToneLevelRatio
	}

	var got []fme.Sequence
	for _, tn := range tones {
		got = append(got, v.Push([]fme.Tone{tn})...)
	}

	require.Empty(t, got)
}

func TestValidator_LengthOutOfRangeReject(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	tooShort := 50 * time.Millisecond

	got := v.Push([]fme.Tone{tone(1, base, tooShort, 1060, 1.0)})
	require.Empty(t, got)
}

func TestValidator_SequenceTimingInvariant(t *testing.T) {
	v := New(testRules(), 9, 10)

	base := time.Now()
	cycle := 85 * time.Millisecond
	toneLen := 80 * time.Millisecond

	tones := []fme.Tone{
		tone(1, base, toneLen, 1060, 1.0),
		tone(4, base.Add(cycle), toneLen, 1400, 1.0),
		tone(5, base.Add(2*cycle), toneLen, 1530, 1.0),
		tone(2, base.Add(3*cycle), toneLen, 1160, 1.0),
		tone(3, base.Add(4*cycle), toneLen, 1270, 1.0),
	}

	var got []fme.Sequence
	for _, tn := range tones {
		got = append(got, v.Push([]fme.Tone{tn})...)
	}

	require.Len(t, got, 1)

	codeTones := got[0].Code.Tones
	for i := 1; i < len(codeTones); i++ {
		require.GreaterOrEqual(t, codeTones[i].Period, time.Duration(0))
		require.LessOrEqual(t, codeTones[i].Period, testRules().DeltaTMaxTwice)
	}
}
