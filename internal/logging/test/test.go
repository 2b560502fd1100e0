// Package test provides a Logger that buffers entries for assertions.
package test

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/markis/omnom/internal/logging"
)

// LogEntry represents a log message.
type LogEntry struct {
	Level   logging.Level
	Fields  map[string]any
	Message string
}

// Logger implementation that buffers messages for test purposes.
type Logger struct {
	level   logging.Level
	fields  map[string]any
	entries *[]LogEntry
	mtx     *sync.Mutex
}

// New instantiates new Logger at debug level so nothing is filtered.
func New() *Logger {
	return &Logger{
		level:   logging.Debug,
		entries: &[]LogEntry{},
		mtx:     &sync.Mutex{},
	}
}

// WithFields returns a logger sharing the same buffer with merged fields.
func (l *Logger) WithFields(fields map[string]any) logging.Logger {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	flds := make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(flds, l.fields)
	maps.Copy(flds, fields)
	return &Logger{
		level:   l.level,
		fields:  flds,
		entries: l.entries,
		mtx:     l.mtx,
	}
}

// Debug buffers a log message.
func (l *Logger) Debug(f string, a ...any) {
	l.append(logging.Debug, f, a...)
}

// Info buffers a log message.
func (l *Logger) Info(f string, a ...any) {
	l.append(logging.Info, f, a...)
}

// Error buffers a log message.
func (l *Logger) Error(f string, a ...any) {
	l.append(logging.Error, f, a...)
}

// Warn buffers a log message.
func (l *Logger) Warn(f string, a ...any) {
	l.append(logging.Warn, f, a...)
}

// SetLevel set log level.
func (l *Logger) SetLevel(level logging.Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.level = level
}

// GetLevel get log level.
func (l *Logger) GetLevel() logging.Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.level
}

// Entries returns buffered log entries.
func (l *Logger) Entries() []LogEntry {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return append([]LogEntry(nil), *l.entries...)
}

// Contains reports whether some entry at level has a message containing s.
func (l *Logger) Contains(level logging.Level, s string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Message, s) {
			return true
		}
	}
	return false
}

func (l *Logger) append(lvl logging.Level, f string, a ...any) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if lvl > l.level {
		return
	}
	*l.entries = append(*l.entries, LogEntry{
		Level:   lvl,
		Fields:  l.fields,
		Message: fmt.Sprintf(f, a...),
	})
}
