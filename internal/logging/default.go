package logging

import (
	"io"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

// Default returns the process logger. Provider constructors use it since the
// registry calls them without arguments. Until SetDefault is called it
// discards everything.
func Default() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return discard
}

// SetDefault installs l as the process logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

var discard = New("pulse", Options{Level: LevelError, Output: io.Discard})
