// Package dispatch implements the Sequence Dispatcher stage (spec §4.7): a
// thread-safe queue of validated sequences, fanned out to registered
// listeners. Spec §9 maps the "dynamic dispatch over sequence sinks"
// concern onto a single capability interface (fme.SequenceSink) rather
// than an inheritance hierarchy; summary vs. full detail is just whether a
// given sink reads Sequence.Code's per-tone fields.
package dispatch

import (
	"sync"

	"github.com/erl987fme/fmed/internal/fme"
)

// Dispatcher fans out validated sequences to registered listeners. Safe
// for concurrent use: multiple producers may call Push (spec §5, "the
// Dispatcher's input" is the one multi-producer queue in the pipeline).
type Dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []fme.Sequence
	listeners []fme.SequenceSink
	stopped   bool
	wg        sync.WaitGroup
}

// New builds a Dispatcher and starts its worker goroutine.
func New() *Dispatcher {
	d := &Dispatcher{}
	d.cond = sync.NewCond(&d.mu)
	d.wg.Add(1)

	go d.run()

	return d
}

// Register adds a listener. Safe to call while the dispatcher is running.
// Listeners cannot be removed: once registered, a listener receives every
// later sequence for the dispatcher's lifetime.
func (d *Dispatcher) Register(sink fme.SequenceSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.listeners = append(d.listeners, sink)
}

// Push enqueues a validated sequence.
func (d *Dispatcher) Push(seq fme.Sequence) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.queue = append(d.queue, seq)
	d.cond.Signal()
}

// Stop drains no further input and joins the worker.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		d.mu.Lock()

		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}

		if len(d.queue) == 0 && d.stopped {
			d.mu.Unlock()

			return
		}

		seq := d.queue[0]
		d.queue = d.queue[1:]
		listeners := append([]fme.SequenceSink(nil), d.listeners...) // copy under lock, invoke outside it
		d.mu.Unlock()

		for _, l := range listeners {
			l.OnSequence(seq)
		}
	}
}
