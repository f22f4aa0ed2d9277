// Package supervisor implements the Audio Front Controller (spec §4.8): it
// resolves device/rate parameters, wires the stages together, and offers
// coherent start/stop/reconfigure. Spec §9 resolves the supervisor/worker
// cyclic-reference risk by having the supervisor own every stage and pass
// only non-owning references downward; stages never call back into the
// supervisor except through the runtime-error sink.
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/erl987fme/fmed/internal/capture"
	"github.com/erl987fme/fmed/internal/config"
	"github.com/erl987fme/fmed/internal/device"
	"github.com/erl987fme/fmed/internal/dispatch"
	"github.com/erl987fme/fmed/internal/downsample"
	"github.com/erl987fme/fmed/internal/fme"
	"github.com/erl987fme/fmed/internal/logctx"
	"github.com/erl987fme/fmed/internal/preserver"
	"github.com/erl987fme/fmed/internal/spectrogram"
	"github.com/erl987fme/fmed/internal/tonesearch"
	"github.com/erl987fme/fmed/internal/validator"
)

// Config bundles the three parameter sets plus the device to capture from
// (empty Identity.Name means the Supervisor picks the default).
type Config struct {
	Audio      config.AudioSettings
	Detection  config.DetectionParams
	FME        config.FMERules
	Device     device.Identity
}

// Controller is the Audio Front Controller (supervisor).
type Controller struct {
	adapter device.Adapter
	log     *log.Logger
	errs    fme.RuntimeErrorSink

	cfg Config

	reader     *capture.Reader
	downsamp   *downsample.Dual
	pair       *spectrogram.Pair
	searcher   *tonesearch.Searcher
	validator  *validator.Validator
	preserver  *preserver.Preserver
	dispatcher *dispatch.Dispatcher

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu sync.Mutex
}

// New builds a Controller. errs receives fatal worker errors from every
// stage (spec §4.8, "Route runtime errors from any worker to a single
// error-callback sink").
func New(adapter device.Adapter, root *log.Logger, errs fme.RuntimeErrorSink) *Controller {
	return &Controller{adapter: adapter, log: root, errs: errs}
}

// ResolveRate picks Fs per spec §4.8: the highest candidate sampling rate
// the chosen device supports (ok=false if none). It returns only the rate;
// the decimation plan (Dproc, Drec) is computed from it separately by
// downsample.ResolvePlan.
func ResolveRate(candidates []float64, supported []float64) (float64, bool) {
	return device.SnapRate(candidates, supported)
}

// Configure resolves parameters and instantiates every stage. Fails with
// fme.ErrBusy if the controller is currently running.
func (c *Controller) Configure(cfg Config) error {
	if c.running.Load() {
		return fme.ErrBusy
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := cfg.Audio.Validate(); err != nil {
		return err
	}

	if err := cfg.Detection.Validate(); err != nil {
		return err
	}

	if err := cfg.FME.Validate(); err != nil {
		return err
	}

	info, ok, err := c.adapter.Default(device.Input)
	if err != nil {
		return err
	}

	supported := cfg.Audio.CandidateFrequencies
	if ok && len(info.SupportedRates) > 0 {
		supported = info.SupportedRates
	}

	fs, ok := ResolveRate(cfg.Audio.CandidateFrequencies, supported)
	if !ok {
		fs = cfg.Audio.CandidateFrequencies[0]
	}

	c.cfg = cfg

	c.reader = capture.New(c.adapter, c.errs, logctx.For(c.log, "capture"))

	samplesPerBuf := int(cfg.Audio.SampleLengthSeconds * fs)
	if err := c.reader.SetParams(capture.Params{
		Device:            cfg.Device,
		Fs:                fs,
		SamplesPerBuf:     samplesPerBuf,
		Channels:          cfg.Audio.Channels,
		MaxMissedAttempts: cfg.Audio.MaxMissedAttempts,
		MaxQueueLength:    cfg.Audio.MaxQueueLength,
	}); err != nil {
		return err
	}

	c.downsamp = downsample.New(downsample.Params{
		Fs:                  fs,
		MaxRequiredProcFreq: cfg.Audio.MaxRequiredProcFreq,
		TransWidthProc:      cfg.Audio.TransWidthProc,
		TransWidthRec:       cfg.Audio.TransWidthRec,
		RecordSampleRate:    cfg.Audio.RecordSampleRate,
	})

	procFs := c.downsamp.Plan().ProcFs

	c.pair = spectrogram.NewPair(spectrogram.PairParams{
		FineTime: spectrogram.BranchParams{
			WindowLengthMS: cfg.Detection.SampleLengthMS,
			FFTSize:        cfg.Detection.FreqResolution,
			Overlap:        cfg.Detection.Overlap,
			Delta:          cfg.Detection.Delta,
			MaxNumPeaks:    cfg.Detection.MaxNumPeaks,
		},
		FineFreq: spectrogram.BranchParams{
			WindowLengthMS: cfg.Detection.SampleLengthCoarseMS,
			FFTSize:        cfg.Detection.FreqResolutionCoarse,
			Overlap:        cfg.Detection.OverlapCoarse,
			Delta:          cfg.Detection.DeltaCoarse,
			MaxNumPeaks:    cfg.Detection.MaxNumPeaksCoarse,
		},
	}, procFs)

	c.searcher = tonesearch.New(tonesearch.Params{
		SearchFreqs:             cfg.Detection.SearchFreqs,
		MaxDeltaF:               cfg.Detection.MaxDeltaF,
		MaxFreqDevConstrained:   cfg.Detection.MaxFreqDevConstrained,
		MaxFreqDevUnconstrained: cfg.Detection.MaxFreqDevUnconstrained,
		NumNeighbours:           cfg.Detection.NumNeighbours,
		EvalToneLength:          msToDuration(cfg.Detection.EvalToneLengthMS),
	}, c.pair.FineTimeHop())

	c.validator = validator.New(validator.FromConfig(cfg.FME), config.ZeroToneIndex, config.RepetitionToneIndex)
	c.dispatcher = dispatch.New()

	c.preserver = nil

	if cfg.Audio.RecordSampleRate > 0 {
		p := preserver.New(nil)
		if err := p.SetParams(preserver.Params{
			RecordBuffer: secondsToDuration(cfg.Audio.RecordBufferSeconds),
			RecordLower:  secondsToDuration(cfg.Audio.RecordLowerSeconds),
			RecordUpper:  secondsToDuration(cfg.Audio.RecordUpperSeconds),
		}); err != nil {
			return err
		}

		c.preserver = p
	}

	return nil
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RegisterSink registers a sequence listener on the dispatcher.
func (c *Controller) RegisterSink(sink fme.SequenceSink) {
	c.dispatcher.Register(sink)
}

// SetRecordedAudioSink wires the preserver's output, when recording is
// enabled, using the recording window Configure already resolved from
// cfg.Audio.
func (c *Controller) SetRecordedAudioSink(sink fme.RecordedAudioSink) error {
	if c.preserver == nil {
		return &fme.ConfigError{Field: "recordSampleRate", Msg: "recording branch is disabled"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.preserver.SetSink(sink)

	return nil
}

// Start launches every stage's worker, start order leaf-to-root per spec
// §4.8.
func (c *Controller) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fme.ErrBusy
	}

	if err := c.reader.Start(ctx); err != nil {
		c.running.Store(false)

		return err
	}

	c.stopCh = make(chan struct{})
	c.wg.Add(1)

	go c.pump(ctx)

	return nil
}

// Stop shuts every stage down, stop order reverse of start (spec §4.8).
func (c *Controller) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}

	close(c.stopCh)
	c.reader.Stop()
	c.wg.Wait()
	c.dispatcher.Stop()
}

// pump is the single goroutine driving frames through the downsampler,
// spectrogram pair, tone searcher, validator, preserver and dispatcher —
// the stages downstream of capture share one worker because, unlike the
// Capture Reader, they are pure computation with no blocking I/O of their
// own (spec §5: "Downstream stages use unbounded queues but process
// faster than real time by design").
func (c *Controller) pump(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		frame, err := c.reader.Next()
		if err != nil {
			return
		}

		procFrame, recFrame := c.downsamp.Process(frame)

		fineTime, fineFreq := c.pair.Push(procFrame)
		c.searcher.PushFineTime(fineTime)
		c.searcher.PushFineFreq(fineFreq)

		for {
			tones, err := c.searcher.Step()
			if err != nil {
				break // fme.ErrInsufficientLookahead: retry once more data arrives
			}

			for _, seq := range c.validator.Push(tones) {
				c.dispatcher.Push(seq)

				if c.preserver != nil {
					c.preserver.MergeSequence(seq)
				}
			}
		}

		if c.preserver != nil && recFrame != nil {
			c.preserver.MergeAudio(*recFrame)
			c.preserver.Tick()
		}
	}
}
