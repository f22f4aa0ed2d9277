// Command fmed-selftest exercises the full detection pipeline in-process
// against a synthesized TR-BOS FME sequence, using the loopback PTY device
// adapter in place of real audio hardware. It exits 0 and prints the
// detected digits if the synthesized code round-trips; otherwise it exits
// 1. Grounded on the teacher's atest.go ("Unit test for the AFSK demodulator")
// — a self-contained test harness built as its own command rather than a
// _test.go file, because it needs a running pipeline and real wall-clock
// pacing.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/erl987fme/fmed/internal/config"
	"github.com/erl987fme/fmed/internal/device"
	"github.com/erl987fme/fmed/internal/fme"
	"github.com/erl987fme/fmed/internal/logctx"
	"github.com/erl987fme/fmed/internal/supervisor"
	"github.com/erl987fme/fmed/internal/synth"
)

func main() {
	digitsFlag := pflag.StringP("code", "c", "25634", "Five-digit TR-BOS FME code to synthesize and detect.")
	timeoutS := pflag.IntP("timeout", "t", 10, "Seconds to wait for a detection before failing.")
	pflag.Parse()

	digits := make([]int, 0, len(*digitsFlag))

	for _, r := range *digitsFlag {
		if r < '0' || r > '9' {
			fmt.Fprintf(os.Stderr, "invalid digit %q in code\n", r)
			os.Exit(2)
		}

		digits = append(digits, int(r-'0'))
	}

	logger := logctx.New("info", os.Stderr)

	audioCfg, detectionCfg, fmeCfg := config.Default()

	pty, err := device.NewPTY()
	if err != nil {
		logger.Fatal("pty", "err", err)
	}
	defer pty.Close()

	fs := audioCfg.CandidateFrequencies[0]

	ctrl := supervisor.New(pty, logger, fme.RuntimeErrorSinkFunc(func(err error) {
		logger.Error("pipeline", "err", err)
	}))

	audioCfg.CandidateFrequencies = []float64{fs}

	if err := ctrl.Configure(supervisor.Config{Audio: audioCfg, Detection: detectionCfg, FME: fmeCfg}); err != nil {
		logger.Fatal("configure", "err", err)
	}

	found := make(chan []int, 1)

	ctrl.RegisterSink(fme.SequenceSinkFunc(func(seq fme.Sequence) {
		select {
		case found <- seq.Code.Digits():
		default:
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeoutS)*time.Second)
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		logger.Fatal("start", "err", err)
	}
	defer ctrl.Stop()

	go feedSynthAudio(pty, fs, digits, fmeCfg, detectionCfg)

	select {
	case got := <-found:
		fmt.Printf("detected: %v\n", got)

		if !equal(got, digits) {
			fmt.Fprintf(os.Stderr, "mismatch: wanted %v, got %v\n", digits, got)
			os.Exit(1)
		}
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "timed out waiting for detection")
		os.Exit(1)
	}
}

func feedSynthAudio(pty *device.PTY, fs float64, digits []int, fmeCfg config.FMERules, detectionCfg config.DetectionParams) {
	params := synth.Params{
		Fs:          fs,
		ToneLength:  fmeCfg.MinLengthMS / 1000 * 1.2,
		PauseTime:   0.5,
		ToneFreqs:   detectionCfg.SearchFreqs,
		PctLoudness: 80,
	}

	samples, _ := synth.Generate(params, digits, nil)

	raw := make([]byte, 4)

	for _, s := range samples {
		binary.LittleEndian.PutUint32(raw, float32bitsOf(s))

		if _, err := pty.Slave().Write(raw); err != nil {
			return
		}
	}
}

func float32bitsOf(s fme.Sample) uint32 {
	return math.Float32bits(float32(s))
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
