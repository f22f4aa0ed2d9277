package downsample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/erl987fme/fmed/internal/fme"
)

func TestResolvePlan_DprocMultipleOfDrec(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fs := rapid.Float64Range(8000, 48000).Draw(rt, "fs")
		maxFreq := rapid.Float64Range(300, 3000).Draw(rt, "maxFreq")
		recFs := rapid.Float64Range(4000, 8000).Draw(rt, "recFs")

		plan := ResolvePlan(Params{Fs: fs, MaxRequiredProcFreq: maxFreq, RecordSampleRate: recFs})

		require.GreaterOrEqual(rt, plan.Dproc, 1)

		if plan.Drec > 0 {
			require.Zero(rt, plan.Dproc%plan.Drec, "Dproc must be a multiple of Drec")
		}
	})
}

func TestResolvePlan_NoRecording(t *testing.T) {
	plan := ResolvePlan(Params{Fs: 48000, MaxRequiredProcFreq: 2800})
	require.Equal(t, 0, plan.Drec)
	require.Zero(t, plan.RecFs)
}

func TestFIRDecimator_OutputLength(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		taps := DesignLowPass(8000, 1000, 200)
		d := rapid.IntRange(1, 8).Draw(rt, "d")
		dec := NewFIRDecimator(taps, d)

		n := rapid.IntRange(0, 4000).Draw(rt, "n")
		in := make([]float64, n)

		out := dec.Process(in)
		require.Equal(rt, n/d, len(out))
	})
}

func TestDual_Process_RecordBranchDecimatesProcOutput(t *testing.T) {
	d := New(Params{Fs: 48000, MaxRequiredProcFreq: 2800, TransWidthProc: 200, TransWidthRec: 100, RecordSampleRate: 8000})

	plan := d.Plan()
	require.Positive(t, plan.Dproc)
	require.Positive(t, plan.Drec)

	n := plan.Dproc * 20
	samples := make([]fme.Sample, n)
	calc := make([]time.Time, n)

	base := time.Now()
	for i := range samples {
		calc[i] = base.Add(time.Duration(i) * time.Second / time.Duration(48000))
	}

	frame := fme.AudioFrame{CapturedAt: base, Calculated: calc, Samples: samples, Fs: 48000}

	procFrame, recFrame := d.Process(frame)
	require.Equal(t, n/plan.Dproc, len(procFrame.Samples))
	require.NotNil(t, recFrame)
	require.Equal(t, len(procFrame.Samples)/d.recFromProc, len(recFrame.Samples))
}
