/*Package logging carries the locally-recovered diagnostics named in
spec.md §7 (OutOfRange, OrderTooHigh, InversionFailed): conditions that are
always logged and never returned as errors. It is a thin adaptation of the
teacher's Mode flag (Nil/Performance/Debug), now backed by logrus so that
warnings carry structured fields instead of ad-hoc fmt.Sprintf strings.
*/
package logging

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Flag selects how much the package logs. Performance suppresses per-fill
// diagnostics that would otherwise dominate a hot loop; Debug enables them.
type Flag int

const (
	Nil Flag = iota
	Performance
	Debug
)

// Mode is process-global, mirroring the teacher's logging.Mode: set once at
// startup, read everywhere, never mutated mid-fill.
var Mode Flag = Nil

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	// Gating is done by Mode; let every level through to the formatter.
	log.SetLevel(logrus.DebugLevel)
}

// Fields is a structured field set attached to a warning.
type Fields = logrus.Fields

// Warn logs a locally-recovered diagnostic (OutOfRange, OrderTooHigh,
// InversionFailed, ...). It is a no-op in Performance mode so that inner
// fill loops don't pay for string formatting they've opted out of.
func Warn(kind string, fields Fields, msg string) {
	if Mode == Performance {
		return
	}
	e := log.WithField("kind", kind)
	for k, v := range fields {
		e = e.WithField(k, v)
	}
	e.Warn(msg)
}

// Debugf logs a debug-only diagnostic; suppressed unless Mode == Debug.
func Debugf(format string, args ...interface{}) {
	if Mode != Debug {
		return
	}
	log.Debugf(format, args...)
}

// MemString returns a string containing various statistics on the current
// memory usage of the process.
func MemString() string {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	return fmt.Sprintf(
		"Alloc - %d MB; Sys - %d MB Integrated - %d MB",
		ms.Alloc>>20, ms.Sys>>20, ms.TotalAlloc>>20,
	)
}
