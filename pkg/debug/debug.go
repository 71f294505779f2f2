// Package debug provides conditional debug logging for mt.
//
// Debug logging is enabled by setting the MT_DEBUG environment variable:
//
//	MT_DEBUG=1 mt view settings.yaml
//
// Messages go to stderr with timestamps, or to the writer given to
// SetOutput. The TUI owns the terminal, so `mt view --log file` routes them
// there instead. When disabled (default) every function returns at once.
//
//	debug.Log("tree: rebuilding %s", id)
//	debug.LogTiming("load", elapsed)
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[mt] "

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("MT_DEBUG") != "" {
		enabled = true
		logger = newLogger(os.Stderr)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled turns logging on or off. Output defaults to stderr.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger(os.Stderr)
	}
}

// SetOutput redirects debug output and enables logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
	enabled = true
}

func active() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l := active(); l != nil {
		l.Printf(format, args...)
	}
}

// LogIf writes a debug message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if cond {
		Log(format, args...)
	}
}

// LogTiming writes how long the named step took.
func LogTiming(name string, d time.Duration) {
	if l := active(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// Assert panics with msg when cond is false. It only checks while debug
// logging is enabled.
func Assert(cond bool, msg string) {
	l := active()
	if l == nil || cond {
		return
	}
	l.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}
