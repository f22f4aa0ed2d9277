package spectrogram

import (
	"sync"
	"time"

	"github.com/erl987fme/fmed/internal/fme"
)

// PairParams configures both STFT branches from the detection parameter
// set (spec §4.3's table).
type PairParams struct {
	FineTime BranchParams
	FineFreq BranchParams
}

// Pair runs the fine-time and fine-frequency branches independently
// threaded (spec §4.3, "Each branch is independently threaded"); results
// are ordered by calculated time within each branch, but the two branches
// are not kept in lockstep with each other.
type Pair struct {
	fineTime *Branch
	fineFreq *Branch

	pushMu sync.Mutex // serializes concurrent Push callers; each branch's own state is otherwise unshared
}

// NewPair builds a Pair for a processing stream at sampling rate fs.
func NewPair(params PairParams, fs float64) *Pair {
	return &Pair{
		fineTime: NewBranch(params.FineTime, fs),
		fineFreq: NewBranch(params.FineFreq, fs),
	}
}

// Push feeds one ProcessedFrame to both branches concurrently and returns
// the peak frames each produced.
func (p *Pair) Push(frame fme.ProcessedFrame) (fineTime, fineFreq []fme.PeakFrame) {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()

		fineTime = p.fineTime.Push(frame)
	}()

	go func() {
		defer wg.Done()

		fineFreq = p.fineFreq.Push(frame)
	}()

	wg.Wait()

	return fineTime, fineFreq
}

// FineTimeHop returns the fine-time branch's hop duration.
func (p *Pair) FineTimeHop() time.Duration { return p.fineTime.HopDuration() }

// FineFreqHop returns the fine-frequency branch's hop duration.
func (p *Pair) FineFreqHop() time.Duration { return p.fineFreq.HopDuration() }
