// Package logctx provides the one structured logger the rest of the
// pipeline is handed explicitly, component by component. It wraps
// github.com/charmbracelet/log the way the teacher's dw_printf/
// text_color_set pair wrapped stdio: a single place that knows how to talk,
// with every caller going through it instead of touching the underlying
// library directly.
package logctx

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New builds the root logger for the process. level is one of "debug",
// "info", "warn", "error"; an unrecognized value falls back to "info".
func New(level string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})

	logger.SetLevel(parseLevel(level))

	return logger
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// For derives a child logger tagged with component=name, the convention
// every stage constructor in this repo follows.
func For(root *log.Logger, name string) *log.Logger {
	return root.With("component", name)
}
