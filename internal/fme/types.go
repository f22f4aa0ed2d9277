// Package fme holds the data model shared by every pipeline stage: the
// frame and tone types that flow from the Capture Reader down to the
// Sequence Dispatcher, plus the small set of sentinel errors stages use to
// report configuration and busy states.
package fme

import "time"

// Sample is the numeric type the detection core is specialized to.
// Amplitude is normalized to [-1, 1].
type Sample = float32

// AudioFrame is one buffer's worth of raw samples off the capture device.
// CapturedAt is the wall-clock time the buffer was read; Calculated is the
// sample-accurate per-sample timestamp reconstructed from Fs and a single
// anchor per buffer (spec §3, §6 "Audio capture timing contract").
type AudioFrame struct {
	CapturedAt time.Time
	Calculated []time.Time
	Samples    []Sample
	Fs         float64
}

// DecimatedFrame is the common shape of ProcessedFrame and RecordFrame: a
// downsampled stream carrying one calculated timestamp per output sample.
type DecimatedFrame struct {
	Calculated []time.Time
	Samples    []Sample
	Fs         float64
}

// ProcessedFrame feeds the Spectrogram Pair.
type ProcessedFrame = DecimatedFrame

// RecordFrame feeds the Audio Preserver.
type RecordFrame = DecimatedFrame

// Peak is one local maximum of a single STFT frame's amplitude spectrum.
type Peak struct {
	Frequency float64 // Hz, parabolic-interpolated
	Level     float64 // peak-normalized absolute level, proportional to PSD
}

// PeakFrame is the output of one STFT hop on either spectrogram branch.
type PeakFrame struct {
	Reference  time.Time // wall clock, advisory only
	Calculated time.Time // sample-accurate, used for ordering
	Peaks      []Peak
}

// PossibleTone is a transient table cell inside the Tone Searcher: the
// per-fine-time-frame, per-search-tone-slot working state before onset/
// offset refinement collapses it into a Tone.
type PossibleTone struct {
	Reference   time.Time
	Calculated  time.Time
	ToneID      int // -1 if no tone recorded in this cell
	CenterFreq  float64
	LowerBound  float64
	UpperBound  float64
	AbsLevel    float64
}

// Tone is one identified tone interval, produced by the Tone Searcher and
// consumed by the Sequence Validator.
type Tone struct {
	ToneID          int
	ReferenceStart  time.Time
	CalculatedStart time.Time
	CalculatedEnd   time.Time
	Frequency       float64
	AbsLevel        float64
}

// Duration is the tone's extent in calculated time.
func (t Tone) Duration() time.Duration {
	return t.CalculatedEnd.Sub(t.CalculatedStart)
}

// CodeTone is one digit slot of a validated CodeData: the resolved digit
// (0-9, with the repetition tone "R" already mapped back to the repeated
// digit) plus the timing/level metadata spec §4.5 requires on output.
type CodeTone struct {
	Digit     int
	Length    time.Duration
	Period    time.Duration // start-to-start distance from the previous tone, 0 for the first
	Frequency float64
	AbsLevel  float64
}

// CodeData is the ordered five-tone body of a validated Sequence.
type CodeData struct {
	Tones []CodeTone
}

// Digits returns the plain digit sequence, e.g. [2 5 6 3 4].
func (c CodeData) Digits() []int {
	digits := make([]int, len(c.Tones))
	for i, t := range c.Tones {
		digits[i] = t.Digit
	}

	return digits
}

// Sequence is the terminal output of the detection core.
type Sequence struct {
	Start time.Time
	Code  CodeData
	Info  string // optional, e.g. rig frequency/squelch annotation
}

// SequenceSink receives validated sequences. The two variants from spec §9
// ("Dynamic dispatch over sequence sinks") are both expressed through this
// one capability; a summary sink can simply ignore the per-tone detail
// already present on Sequence.Code.
type SequenceSink interface {
	OnSequence(seq Sequence)
}

// SequenceSinkFunc adapts a plain function to a SequenceSink.
type SequenceSinkFunc func(Sequence)

// OnSequence implements SequenceSink.
func (f SequenceSinkFunc) OnSequence(seq Sequence) { f(seq) }

// RecordedAudioSink receives the post-trigger audio clip for a sequence,
// once the Audio Preserver's recording window for it has closed.
type RecordedAudioSink interface {
	OnRecordedAudio(seq Sequence, samples []Sample, fs float64)
}

// RuntimeErrorSink receives asynchronous worker-thread errors (spec §7);
// the pipeline keeps running after reporting one.
type RuntimeErrorSink interface {
	OnRuntimeError(err error)
}

// RuntimeErrorSinkFunc adapts a plain function to a RuntimeErrorSink.
type RuntimeErrorSinkFunc func(error)

// OnRuntimeError implements RuntimeErrorSink.
func (f RuntimeErrorSinkFunc) OnRuntimeError(err error) { f(err) }
