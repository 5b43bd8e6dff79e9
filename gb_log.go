// gb_log.go - Diagnostic output for the emulation core and player.

package main

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type gbLogLevel int

const (
	gbLogQuiet gbLogLevel = iota
	gbLogWarn
	gbLogInfo
	gbLogDebug
)

// gbLogger writes "component: message" lines. WarnOnce suppresses repeats of
// the same condition so a tight emulation loop cannot flood the output.
type gbLogger struct {
	mu     sync.Mutex
	out    io.Writer
	level  gbLogLevel
	warned map[string]int
}

func newGBLogger(out io.Writer, level gbLogLevel) *gbLogger {
	if out == nil {
		out = os.Stderr
	}
	return &gbLogger{
		out:    out,
		level:  level,
		warned: make(map[string]int),
	}
}

func (l *gbLogger) logf(level gbLogLevel, component, format string, args ...any) {
	if l == nil || l.level < level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s: %s\n", component, fmt.Sprintf(format, args...))
}

func (l *gbLogger) Warnf(component, format string, args ...any) {
	l.logf(gbLogWarn, component, format, args...)
}

func (l *gbLogger) Infof(component, format string, args ...any) {
	l.logf(gbLogInfo, component, format, args...)
}

func (l *gbLogger) Debugf(component, format string, args ...any) {
	l.logf(gbLogDebug, component, format, args...)
}

// WarnOnce emits a warning the first time key is seen. Later occurrences are
// only counted.
func (l *gbLogger) WarnOnce(key, component, format string, args ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	n := l.warned[key]
	l.warned[key] = n + 1
	l.mu.Unlock()
	if n == 0 {
		l.Warnf(component, format, args...)
	}
}

// Occurrences reports how often key was passed to WarnOnce.
func (l *gbLogger) Occurrences(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warned[key]
}
