package fme

import "errors"

// Sentinel errors shared across stages, per spec §7 "Error Handling Design".
var (
	// ErrBusy is returned when a caller attempts to reconfigure a stage
	// while its worker is running.
	ErrBusy = errors.New("fme: stage is running, stop it before reconfiguring")

	// ErrOverflow is reported via a RuntimeErrorSink when a stage's bounded
	// queue exceeds its configured maximum length — a persistent consumer
	// lag the pipeline cannot recover from on its own.
	ErrOverflow = errors.New("fme: input queue overflow")

	// ErrInsufficientLookahead signals the Tone Searcher needs more data
	// before it can complete an analysis step. It is never surfaced to a
	// RuntimeErrorSink: callers retry the step once more data has arrived.
	ErrInsufficientLookahead = errors.New("fme: insufficient lookahead, retry later")

	// ErrStopped is returned by blocking operations when the stage has been
	// asked to stop while they were waiting.
	ErrStopped = errors.New("fme: stage stopped")
)

// ConfigError wraps an invalid-parameter condition detected at init or
// setParameters time (spec §7 "Configuration").
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "fme: invalid configuration: " + e.Msg
	}

	return "fme: invalid configuration for " + e.Field + ": " + e.Msg
}

// DeviceError wraps an underlying audio driver failure (spec §7 "Audio
// device failure"). It carries the same fatal-for-the-worker policy as
// ErrOverflow.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return "fme: audio device " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }
