// Package preserver implements the Audio Preserver stage (spec §4.6): a
// rolling deque of the recording-branch signal keyed by calculated time,
// sliced into post-trigger clips on each validated sequence.
package preserver

import (
	"sort"
	"sync"
	"time"

	"github.com/erl987fme/fmed/internal/fme"
)

// Params configures the Preserver. Validated on Set per spec §4.6.
type Params struct {
	RecordBuffer time.Duration // >= 0
	RecordLower  time.Duration // may be negative; offset from sequence start
	RecordUpper  time.Duration // >= RecordLower
}

// Validate checks the three invariants spec §4.6 requires.
func (p Params) Validate() error {
	if p.RecordBuffer < 0 {
		return &fme.ConfigError{Field: "recordBuffer", Msg: "must be >= 0"}
	}

	if p.RecordLower > p.RecordUpper {
		return &fme.ConfigError{Field: "recordLower", Msg: "must be <= recordUpper"}
	}

	if p.RecordLower < 0 && p.RecordBuffer < -p.RecordLower {
		return &fme.ConfigError{Field: "recordBuffer", Msg: "must be >= |recordLower| when recordLower < 0"}
	}

	return nil
}

type sample struct {
	t time.Time
	v fme.Sample
}

// Preserver is the Audio Preserver stage.
type Preserver struct {
	mu     sync.Mutex
	params Params
	fs     float64

	deque   []sample
	pending map[time.Time]fme.Sequence

	sink fme.RecordedAudioSink
}

// New builds a Preserver delivering clips to sink.
func New(sink fme.RecordedAudioSink) *Preserver {
	return &Preserver{pending: make(map[time.Time]fme.Sequence), sink: sink}
}

// SetParams reconfigures the preserver after validating it (spec §4.6).
func (p *Preserver) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.params = params
	p.mu.Unlock()

	return nil
}

// SetSink replaces the recorded-audio sink without disturbing the rolling
// deque or the configured recording window.
func (p *Preserver) SetSink(sink fme.RecordedAudioSink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// MergeAudio appends newly arrived recording-branch samples to the rolling
// deque (spec §4.6 tick step 1).
func (p *Preserver) MergeAudio(frame fme.RecordFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fs = frame.Fs

	for i, v := range frame.Samples {
		p.deque = append(p.deque, sample{t: frame.Calculated[i], v: v})
	}
}

// MergeSequence registers a validated sequence awaiting its audio slice
// (spec §4.6 tick step 1).
func (p *Preserver) MergeSequence(seq fme.Sequence) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending[seq.Start] = seq
}

// Tick delivers every pending capture whose recording window has fully
// arrived, then trims the deque (spec §4.6 tick steps 2-3).
func (p *Preserver) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.deque) == 0 {
		return
	}

	latest := p.deque[len(p.deque)-1].t

	for start, seq := range p.pending {
		end := start.Add(p.params.RecordUpper)
		if end.After(latest) {
			continue
		}

		lower := start.Add(p.params.RecordLower)
		clip := p.sliceBetween(lower, end)

		delete(p.pending, start)

		if p.sink != nil {
			p.sink.OnRecordedAudio(seq, clip, p.fs)
		}
	}

	p.trim()
}

func (p *Preserver) sliceBetween(from, to time.Time) []fme.Sample {
	lo := sort.Search(len(p.deque), func(i int) bool { return !p.deque[i].t.Before(from) })
	hi := sort.Search(len(p.deque), func(i int) bool { return p.deque[i].t.After(to) })

	out := make([]fme.Sample, 0, hi-lo)
	for _, s := range p.deque[lo:hi] {
		out = append(out, s.v)
	}

	return out
}

func (p *Preserver) trim() {
	cutoffAnchor := p.deque[len(p.deque)-1].t

	if len(p.pending) > 0 {
		earliest := cutoffAnchor
		for start := range p.pending {
			if start.Before(earliest) {
				earliest = start
			}
		}

		cutoffAnchor = earliest
	}

	cutoff := cutoffAnchor.Add(-p.params.RecordBuffer)

	idx := sort.Search(len(p.deque), func(i int) bool { return !p.deque[i].t.Before(cutoff) })
	p.deque = p.deque[idx:]
}
