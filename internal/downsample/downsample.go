package downsample

import (
	"time"

	"github.com/erl987fme/fmed/internal/fme"
)

// Params configures the Dual Downsampler (spec §4.2).
type Params struct {
	Fs                  float64
	MaxRequiredProcFreq float64
	TransWidthProc      float64
	TransWidthRec       float64
	// RecordSampleRate is the user-requested storage rate. Zero disables
	// the recording branch entirely.
	RecordSampleRate float64
}

// Plan is the resolved decimation plan spec §4.2 describes: Dproc a
// multiple of Drec whenever recording is enabled.
type Plan struct {
	Dproc, Drec int
	ProcFs      float64
	RecFs       float64
}

// isPrime reports whether n is prime; used to avoid an unfactorable
// decimation factor (spec §4.2: "adjusted down by 1 if prime, and not 2").
func isPrime(n int) bool {
	if n < 2 {
		return false
	}

	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}

	return true
}

// ResolvePlan computes (Dproc, Drec) per spec §4.2.
func ResolvePlan(p Params) Plan {
	dproc := int(p.Fs / (2 * p.MaxRequiredProcFreq))
	if dproc < 1 {
		dproc = 1
	}

	if isPrime(dproc) && dproc != 2 {
		dproc--
	}

	if dproc < 1 {
		dproc = 1
	}

	plan := Plan{Dproc: dproc, ProcFs: p.Fs / float64(dproc)}

	if p.RecordSampleRate <= 0 {
		plan.Drec = 0
		plan.RecFs = 0

		return plan
	}

	drec := int(p.Fs / p.RecordSampleRate)
	if drec < 1 {
		drec = 1
	}

	// Constrain Dproc to be a multiple of Drec (spec §4.2) by growing Dproc
	// up to the next multiple, never shrinking below the value already
	// computed above.
	if dproc%drec != 0 {
		dproc = ((dproc / drec) + 1) * drec
	}

	plan.Dproc = dproc
	plan.ProcFs = p.Fs / float64(dproc)
	plan.Drec = drec
	plan.RecFs = p.Fs / float64(drec)

	return plan
}

// Dual is the Dual Downsampler stage. When RecordSampleRate is zero, only
// the processing filter runs (spec §4.2).
type Dual struct {
	plan Plan

	proc    *FIRDecimator
	rec     *FIRDecimator // nil when recording is disabled
	recFromProc int       // decimation factor applied to the processing branch's output
}

// New builds a Dual downsampler from Params, designing both FIR filters
// once per parameter set (spec §4.2).
func New(p Params) *Dual {
	plan := ResolvePlan(p)

	procTaps := DesignLowPass(p.Fs, p.MaxRequiredProcFreq, p.TransWidthProc)
	d := &Dual{
		plan: plan,
		proc: NewFIRDecimator(procTaps, plan.Dproc),
	}

	if plan.Drec > 0 {
		// The recording filter runs on the already-decimated processing
		// stream (spec §4.2), so its input rate is ProcFs, not Fs, and its
		// decimation factor is the remaining ratio Dproc/Drec.
		d.recFromProc = plan.Dproc / plan.Drec
		recCutoff := plan.RecFs / 2
		recTaps := DesignLowPass(plan.ProcFs, recCutoff, p.TransWidthRec)
		d.rec = NewFIRDecimator(recTaps, d.recFromProc)
	}

	return d
}

// Plan returns the resolved decimation plan.
func (d *Dual) Plan() Plan { return d.plan }

// Process filters and decimates one AudioFrame into a ProcessedFrame and,
// if recording is enabled, a RecordFrame obtained by further decimating
// the processing branch's output (spec §4.2: "the recording branch may be
// obtained by further decimating the processing-filter output").
func (d *Dual) Process(frame fme.AudioFrame) (fme.ProcessedFrame, *fme.RecordFrame) {
	in := make([]float64, len(frame.Samples))
	for i, s := range frame.Samples {
		in[i] = float64(s)
	}

	procOut := d.proc.Process(in)
	procFrame := toDecimated(procOut, frame.Calculated, d.plan.Dproc, d.plan.ProcFs)

	if d.rec == nil {
		return procFrame, nil
	}

	recOut := d.rec.Process(procOut)
	recFrame := toDecimated(recOut, procFrame.Calculated, d.recFromProc, d.plan.RecFs)

	return procFrame, &recFrame
}

func toDecimated(out []float64, calcSrc []time.Time, d int, outFs float64) fme.DecimatedFrame {
	samples := make([]fme.Sample, len(out))
	calc := make([]time.Time, len(out))

	for i, v := range out {
		samples[i] = fme.Sample(v)

		srcIdx := i * d
		if srcIdx >= len(calcSrc) {
			srcIdx = len(calcSrc) - 1
		}

		calc[i] = calcSrc[srcIdx]
	}

	return fme.DecimatedFrame{Calculated: calc, Samples: samples, Fs: outFs}
}
