// Package logger builds charmbracelet/log loggers for the different parts of tripserve.
// Everything goes to stderr: stdout belongs to the IPC protocol.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Output is where New and Setup send log lines.
var Output io.Writer = os.Stderr

// New creates a prefixed charm log that follows the global level.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(Output, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// Setup points the global logger at Output with the level for debug or normal runs.
func Setup(debug bool) {
	log.SetOutput(Output)
	log.SetReportTimestamp(false)
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.WarnLevel)
}
