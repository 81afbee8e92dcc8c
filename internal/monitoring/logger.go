// Package monitoring carries the service-level logger and the Prometheus
// metrics of the analysis service.
package monitoring

import (
	"log"
	"strings"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// LogfWriter adapts Logf to an io.Writer so stream loggers can be routed
// through it. Each Write becomes one Logf call with trailing newlines
// trimmed.
type LogfWriter struct {
	Prefix string
}

func (w LogfWriter) Write(p []byte) (int, error) {
	Logf("%s%s", w.Prefix, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
