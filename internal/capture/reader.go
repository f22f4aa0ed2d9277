// Package capture implements the Capture Reader stage (spec §4.1): it owns
// the audio device session, reads fixed-size buffers, stamps them with
// wall-clock and calculated time, and publishes AudioFrames to a bounded
// output queue.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/erl987fme/fmed/internal/device"
	"github.com/erl987fme/fmed/internal/fme"
)

// Params configures the reader. Re-settable only while the worker is
// stopped (spec §4.1).
type Params struct {
	Device            device.Identity
	Fs                float64
	SamplesPerBuf     int
	Channels          int
	MaxMissedAttempts int
	MaxQueueLength    int
}

// Reader is the Capture Reader stage.
type Reader struct {
	adapter device.Adapter
	errs    fme.RuntimeErrorSink
	log     *log.Logger

	mu      sync.RWMutex
	params  Params
	running atomic.Bool

	queueMu sync.Mutex
	cond    *sync.Cond
	queue   []fme.AudioFrame

	stream device.Stream
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Reader. errs receives fatal overflow/device errors (spec
// §7); the pipeline keeps running after reporting one.
func New(adapter device.Adapter, errs fme.RuntimeErrorSink, logger *log.Logger) *Reader {
	r := &Reader{adapter: adapter, errs: errs, log: logger}
	r.cond = sync.NewCond(&r.queueMu)

	return r
}

// SetParams reconfigures the reader. Fails with fme.ErrBusy if running.
func (r *Reader) SetParams(p Params) error {
	if r.running.Load() {
		return fme.ErrBusy
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p

	return nil
}

// Start opens the device and spawns the worker goroutine.
func (r *Reader) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fme.ErrBusy
	}

	r.mu.RLock()
	p := r.params
	r.mu.RUnlock()

	stream, err := r.adapter.Open(p.Device, p.Fs, p.SamplesPerBuf, p.Channels)
	if err != nil {
		r.running.Store(false)

		return err
	}

	r.stream = stream
	r.stopCh = make(chan struct{})

	r.wg.Add(1)

	go r.run(ctx, p)

	return nil
}

// Stop signals the worker to exit, closes the device to unblock a pending
// blocking read (spec §9), and waits for the worker to join.
func (r *Reader) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}

	close(r.stopCh)

	if r.stream != nil {
		_ = r.stream.Close()
	}

	r.cond.Broadcast()
	r.wg.Wait()
}

// Next blocks until a frame is available or the reader stops, returning
// fme.ErrStopped in the latter case.
func (r *Reader) Next() (fme.AudioFrame, error) {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()

	for len(r.queue) == 0 {
		if !r.running.Load() && len(r.queue) == 0 {
			return fme.AudioFrame{}, fme.ErrStopped
		}

		r.cond.Wait()
	}

	frame := r.queue[0]
	r.queue = r.queue[1:]

	return frame, nil
}

func (r *Reader) run(ctx context.Context, p Params) {
	defer r.wg.Done()

	buf := make([]fme.Sample, p.SamplesPerBuf*p.Channels)

	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		if err := r.stream.Read(ctx, buf); err != nil {
			if !r.running.Load() {
				return
			}

			r.reportFatal(&fme.DeviceError{Op: "read", Err: err})

			return
		}

		now := time.Now()
		frame := fme.AudioFrame{
			CapturedAt: now,
			Calculated: make([]time.Time, p.SamplesPerBuf),
			Samples:    append([]fme.Sample(nil), buf...),
			Fs:         p.Fs,
		}

		step := time.Duration(float64(time.Second) / p.Fs)
		for i := range frame.Calculated {
			frame.Calculated[i] = now.Add(time.Duration(i) * step)
		}

		if err := r.publish(frame, p); err != nil {
			r.reportFatal(err)

			return
		}
	}
}

// publish implements the non-blocking-then-blocking handoff policy of spec
// §4.1: retry a non-blocking acquisition of the queue up to
// MaxMissedAttempts times before forcing a blocking handoff, guaranteeing
// no sample loss on brief consumer stalls. An overflow beyond
// MaxQueueLength is fatal.
func (r *Reader) publish(frame fme.AudioFrame, p Params) error {
	attempts := 0
	for !r.queueMu.TryLock() {
		if attempts >= p.MaxMissedAttempts {
			r.queueMu.Lock()

			break
		}

		attempts++

		time.Sleep(time.Millisecond)
	}
	defer r.queueMu.Unlock()

	if len(r.queue) >= p.MaxQueueLength {
		return fme.ErrOverflow
	}

	r.queue = append(r.queue, frame)
	r.cond.Broadcast()

	return nil
}

func (r *Reader) reportFatal(err error) {
	if r.log != nil {
		r.log.Error("capture reader fatal", "err", err)
	}

	if r.errs != nil {
		r.errs.OnRuntimeError(err)
	}
}
