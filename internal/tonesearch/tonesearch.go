// Package tonesearch implements the Tone Searcher stage (spec §4.4): it
// fuses the fine-time and fine-frequency peak streams into a tone stream,
// broadening a coarse-frequency hit into a fine-time window whose precise
// onset/offset is carved out against adaptive frequency bounds.
//
// Open Question resolved here (spec §9): a coarse-frequency hit is
// attributed to the first fine-time frame whose calculated time is >= the
// coarse frame's calculated time ("snap forward"), never backward.
//
// Window carry-over: a tone still open at the end of one Step's window is
// continued into the next Step when that window's first fine-time frame has
// a peak inside the slot's adaptive bounds (keeping the earlier start and
// the larger level); otherwise it is emitted as it stands. The decision
// does not compare calculated times.
package tonesearch

import (
	"math"
	"sort"
	"time"

	"github.com/erl987fme/fmed/internal/fme"
)

// Params configures the searcher from the detection parameter set (spec
// §6).
type Params struct {
	SearchFreqs             []float64 // 10 TR-BOS tones + the repetition tone, in slot order
	MaxDeltaF               float64
	MaxFreqDevConstrained   float64
	MaxFreqDevUnconstrained float64
	NumNeighbours           int
	EvalToneLength          time.Duration
}

// Searcher is the Tone Searcher stage. It is not safe for concurrent use
// from multiple goroutines; the supervisor gives it a single worker.
type Searcher struct {
	params Params

	fineTimeHop time.Duration
	coreCount   int

	fineTimeBuf []fme.PeakFrame
	fineFreqBuf []fme.PeakFrame

	pending []*fme.Tone // per search-tone slot, carried across Step calls
}

// New builds a Searcher. fineTimeHop is the fine-time branch's nominal hop
// duration, used to translate EvalToneLength into a frame count.
func New(params Params, fineTimeHop time.Duration) *Searcher {
	coreCount := int(math.Ceil(float64(params.EvalToneLength) / float64(fineTimeHop)))
	if coreCount < 1 {
		coreCount = 1
	}

	return &Searcher{
		params:      params,
		fineTimeHop: fineTimeHop,
		coreCount:   coreCount,
		pending:     make([]*fme.Tone, len(params.SearchFreqs)),
	}
}

// PushFineTime appends newly arrived fine-time peak frames.
func (s *Searcher) PushFineTime(frames []fme.PeakFrame) {
	s.fineTimeBuf = append(s.fineTimeBuf, frames...)
}

// PushFineFreq appends newly arrived fine-frequency peak frames.
func (s *Searcher) PushFineFreq(frames []fme.PeakFrame) {
	s.fineFreqBuf = append(s.fineFreqBuf, frames...)
}

// Step runs one analysis step (spec §4.4). It returns fme.
// ErrInsufficientLookahead — not a failure — when the lookahead frames
// needed to finish the step have not arrived yet; callers retry once more
// data has been pushed.
func (s *Searcher) Step() ([]fme.Tone, error) {
	required := s.coreCount + s.params.NumNeighbours
	if len(s.fineTimeBuf) < required {
		return nil, fme.ErrInsufficientLookahead
	}

	window := s.fineTimeBuf[:required]
	windowEnd := window[s.coreCount-1].Calculated

	if s.fineFreqBuf == nil || s.fineFreqBuf[len(s.fineFreqBuf)-1].Calculated.Before(windowEnd) {
		return nil, fme.ErrInsufficientLookahead
	}

	numSlots := len(s.params.SearchFreqs)
	table := make([][]fme.PossibleTone, required)

	for j := range table {
		table[j] = make([]fme.PossibleTone, numSlots)
		for k := range table[j] {
			table[j][k] = fme.PossibleTone{ToneID: -1}
		}
	}

	s.coarseMatch(window, table)
	s.adaptiveBounds(table)

	tones := s.refine(window, table)

	// Retire consumed frames: the core region is fully consumed; the
	// lookahead frames remain as the start of the next window (spec §4.4,
	// "Consumed data is retired with care").
	s.fineTimeBuf = s.fineTimeBuf[s.coreCount:]

	keep := 0

	for i, f := range s.fineFreqBuf {
		if !f.Calculated.Before(windowEnd) {
			keep = i
			break
		}

		keep = i + 1
	}

	s.fineFreqBuf = s.fineFreqBuf[keep:]

	sort.Slice(tones, func(i, j int) bool {
		return tones[i].CalculatedStart.Before(tones[j].CalculatedStart)
	})

	return tones, nil
}

// coarseMatch implements spec §4.4 step 2: for each fine-frequency frame
// and each search frequency, test for a relative-frequency hit and record
// it (snapped forward) into the fine-time table across ±NumNeighbours.
func (s *Searcher) coarseMatch(window []fme.PeakFrame, table [][]fme.PossibleTone) {
	windowEnd := window[s.coreCount-1].Calculated

	for _, cf := range s.fineFreqBuf {
		if cf.Calculated.After(windowEnd) {
			break
		}

		idx := firstIndexAtOrAfter(window, cf.Calculated)
		if idx < 0 {
			continue
		}

		for k, fk := range s.params.SearchFreqs {
			peak, ok := bestMatch(cf.Peaks, fk, s.params.MaxDeltaF)
			if !ok {
				continue
			}

			lo := idx - s.params.NumNeighbours
			if lo < 0 {
				lo = 0
			}

			hi := idx + s.params.NumNeighbours
			if hi > len(window)-1 {
				hi = len(window) - 1
			}

			for j := lo; j <= hi; j++ {
				cell := &table[j][k]
				if cell.ToneID == -1 {
					cell.ToneID = k
					cell.Reference = window[j].Reference
					cell.Calculated = window[j].Calculated
					cell.CenterFreq = peak.Frequency
					cell.AbsLevel = peak.Level
				} else if peak.Level > cell.AbsLevel {
					cell.AbsLevel = peak.Level
				}
			}
		}
	}
}

// adaptiveBounds implements spec §4.4 step 3.
func (s *Searcher) adaptiveBounds(table [][]fme.PossibleTone) {
	numSlots := len(s.params.SearchFreqs)

	for j := range table {
		for k := 0; k < numSlots; k++ {
			cell := &table[j][k]
			if cell.ToneID == -1 {
				continue
			}

			nominal := s.params.SearchFreqs[k]

			if k+1 < numSlots && table[j][k+1].ToneID != -1 {
				gap := table[j][k+1].CenterFreq - nominal
				cell.UpperBound = nominal + s.params.MaxFreqDevConstrained*gap
			} else {
				cell.UpperBound = nominal + s.params.MaxFreqDevUnconstrained*nominal
			}

			if k-1 >= 0 && table[j][k-1].ToneID != -1 {
				gap := nominal - table[j][k-1].CenterFreq
				cell.LowerBound = nominal - s.params.MaxFreqDevConstrained*gap
			} else {
				cell.LowerBound = nominal - s.params.MaxFreqDevUnconstrained*nominal
			}
		}
	}
}

// refine implements spec §4.4 steps 4-5: walk the fine-time frames in
// order, open/extend/close tones against the adaptive bounds, and merge or
// emit tones carried over from the previous Step call.
func (s *Searcher) refine(window []fme.PeakFrame, table [][]fme.PossibleTone) []fme.Tone {
	numSlots := len(s.params.SearchFreqs)
	open := make([]*fme.Tone, numSlots)

	var out []fme.Tone

	// Boundary carry-over (spec §4.4 step 5): decide now whether the
	// previous step's open tones continue into this window's first frame.
	for k := 0; k < numSlots; k++ {
		prev := s.pending[k]
		if prev == nil {
			continue
		}

		s.pending[k] = nil

		if matches(window[0], table[0][k]) {
			open[k] = prev
		} else {
			out = append(out, *prev)
		}
	}

	for j := range window {
		for k := 0; k < numSlots; k++ {
			cell := table[j][k]

			hit := cell.ToneID != -1 && matches(window[j], cell)

			switch {
			case hit && open[k] == nil:
				open[k] = &fme.Tone{
					ToneID:          k,
					ReferenceStart:  window[j].Reference,
					CalculatedStart: window[j].Calculated,
					CalculatedEnd:   window[j].Calculated,
					Frequency:       cell.CenterFreq,
					AbsLevel:        cell.AbsLevel,
				}
			case hit && open[k] != nil:
				open[k].CalculatedEnd = window[j].Calculated
				if cell.AbsLevel > open[k].AbsLevel {
					open[k].AbsLevel = cell.AbsLevel
				}
			case !hit && open[k] != nil:
				out = append(out, *open[k])
				open[k] = nil
			}
		}
	}

	// Whatever is still open at the end of the buffered window carries
	// forward to the next Step call (spec §4.4 step 5).
	for k, t := range open {
		if t != nil {
			s.pending[k] = t
		}
	}

	return out
}

func matches(frame fme.PeakFrame, cell fme.PossibleTone) bool {
	for _, p := range frame.Peaks {
		if p.Frequency >= cell.LowerBound && p.Frequency <= cell.UpperBound {
			return true
		}
	}

	return false
}

func firstIndexAtOrAfter(window []fme.PeakFrame, t time.Time) int {
	for i, f := range window {
		if !f.Calculated.Before(t) {
			return i
		}
	}

	return -1
}

// bestMatch returns the peak closest in relative frequency to fk, if any
// peak satisfies |f_peak - fk|/fk <= maxDeltaF (spec §4.4 step 2).
func bestMatch(peaks []fme.Peak, fk, maxDeltaF float64) (fme.Peak, bool) {
	var (
		best    fme.Peak
		bestErr = math.Inf(1)
		found   bool
	)

	for _, p := range peaks {
		relErr := math.Abs(p.Frequency-fk) / fk
		if relErr <= maxDeltaF && relErr < bestErr {
			best, bestErr, found = p, relErr, true
		}
	}

	return best, found
}
