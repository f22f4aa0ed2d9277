// Package rig queries a transceiver's current frequency and squelch state
// over CAT control, using github.com/xylo04/goHamlib — a pure-Go binding
// to the same hamlib rig-control library the teacher links in via cgo
// (src/ptt.go's "#include <hamlib/rig.h>" and "-lhamlib" in direwolf.go).
// Read-only: the teacher uses hamlib for PTT keying (push-to-talk), but
// here the only use is annotating a detected sequence with the receiver's
// tuned frequency and squelch state, so only query calls are made.
package rig

import (
	"fmt"
	"sync"

	"github.com/xylo04/goHamlib"
)

// Config names the rig model and CAT port, mirroring the teacher's
// config.go "RIG model port" directive.
type Config struct {
	Model int
	Port  string
	Baud  int
}

// Rig is a read-only handle on a CAT-controlled transceiver.
type Rig struct {
	mu  sync.Mutex
	rig *goHamlib.Rig
}

// Open opens a CAT connection per cfg.
func Open(cfg Config) (*Rig, error) {
	r := goHamlib.Rig{Model: goHamlib.RigModel(cfg.Model)} //nolint:exhaustruct

	if err := r.Init(); err != nil {
		return nil, fmt.Errorf("rig: init model %d: %w", cfg.Model, err)
	}

	r.SetConf("rig_pathname", cfg.Port) //nolint:errcheck

	if cfg.Baud > 0 {
		r.SetConf("serial_speed", fmt.Sprintf("%d", cfg.Baud)) //nolint:errcheck
	}

	if err := r.Open(); err != nil {
		return nil, fmt.Errorf("rig: open %s: %w", cfg.Port, err)
	}

	return &Rig{rig: &r}, nil
}

// Close closes the CAT connection.
func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rig.Close()
}

// Status is a snapshot of the tuned frequency and squelch state, used to
// annotate a detected Sequence (fme.Sequence.Info).
type Status struct {
	FrequencyHz float64
	SquelchOpen bool
}

// Query reads the rig's current frequency and squelch state on the
// currently selected VFO.
func (r *Rig) Query() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	freq, err := r.rig.GetFreq(goHamlib.VFOCurrent)
	if err != nil {
		return Status{}, fmt.Errorf("rig: get frequency: %w", err)
	}

	level, err := r.rig.GetLevelI(goHamlib.VFOCurrent, goHamlib.LevelSQL)
	squelchOpen := err == nil && level > 0

	return Status{FrequencyHz: freq, SquelchOpen: squelchOpen}, nil
}

// Annotation formats a Status the way a SequenceSink can drop into
// fme.Sequence.Info.
func (s Status) Annotation() string {
	state := "closed"
	if s.SquelchOpen {
		state = "open"
	}

	return fmt.Sprintf("%.4f MHz, squelch %s", s.FrequencyHz/1e6, state)
}
