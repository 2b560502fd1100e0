// Package logging is the observability sink injected into the parsing engine.
// Nothing in the engine writes to the console directly.
package logging

import (
	"fmt"
	"io"
	"maps"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level log level for Logger
type Level uint8

const (
	// Error error log level
	Error Level = iota
	// Warn warn log level
	Warn
	// Info info log level
	Info
	// Debug debug log level
	Debug
)

func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Logger is the logging interface used by the push loop, producers and the CLI.
type Logger interface {
	Debug(fmt string, a ...any)
	Info(fmt string, a ...any)
	Error(fmt string, a ...any)
	Warn(fmt string, a ...any)

	WithFields(map[string]any) Logger

	GetLevel() Level
	SetLevel(Level)
}

// GetLevel parses a level name. The empty string means info.
func GetLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return Debug, nil
	case "", "info":
		return Info, nil
	case "warn":
		return Warn, nil
	case "error":
		return Error, nil
	default:
		return Debug, fmt.Errorf("invalid log level: %v", level)
	}
}

// GetFormatter maps a format name to a logrus formatter. Unknown names fall
// back to text.
func GetFormatter(format string) logrus.Formatter {
	switch format {
	case "json":
		return &logrus.JSONFormatter{}
	case "json-pretty":
		return &logrus.JSONFormatter{PrettyPrint: true}
	default:
		return &logrus.TextFormatter{DisableTimestamp: true}
	}
}

// StandardLogger is the default logger, backed by logrus.
type StandardLogger struct {
	logger *logrus.Logger
	fields map[string]any
}

// New returns a standard logger writing text to stderr at info level.
func New() *StandardLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(GetFormatter("text"))
	l.SetLevel(logrus.InfoLevel)
	return &StandardLogger{logger: l}
}

// NewWith builds a standard logger from level and format names.
func NewWith(w io.Writer, level, format string) (*StandardLogger, error) {
	lvl, err := GetLevel(level)
	if err != nil {
		return nil, err
	}
	l := New()
	l.SetOutput(w)
	l.SetFormatter(GetFormatter(format))
	l.SetLevel(lvl)
	return l, nil
}

// SetOutput sets the underlying logrus output.
func (l *StandardLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetFormatter sets the underlying logrus formatter.
func (l *StandardLogger) SetFormatter(formatter logrus.Formatter) {
	l.logger.SetFormatter(formatter)
}

// WithFields returns a copy of the logger carrying the merged fields.
func (l *StandardLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(cp.fields, l.fields)
	maps.Copy(cp.fields, fields)
	return &cp
}

// SetLevel sets the standard logger level.
func (l *StandardLogger) SetLevel(level Level) {
	var logrusLevel logrus.Level
	switch level {
	case Error:
		logrusLevel = logrus.ErrorLevel
	case Warn:
		logrusLevel = logrus.WarnLevel
	case Info:
		logrusLevel = logrus.InfoLevel
	default:
		logrusLevel = logrus.DebugLevel
	}
	l.logger.SetLevel(logrusLevel)
}

// GetLevel returns the standard logger level.
func (l *StandardLogger) GetLevel() Level {
	switch l.logger.GetLevel() {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return Error
	case logrus.WarnLevel:
		return Warn
	case logrus.InfoLevel:
		return Info
	default:
		return Debug
	}
}

func (l *StandardLogger) entry() *logrus.Entry {
	return l.logger.WithFields(logrus.Fields(l.fields))
}

// Debug logs at debug level
func (l *StandardLogger) Debug(f string, a ...any) {
	l.entry().Debugf(f, a...)
}

// Info logs at info level
func (l *StandardLogger) Info(f string, a ...any) {
	l.entry().Infof(f, a...)
}

// Error logs at error level
func (l *StandardLogger) Error(f string, a ...any) {
	l.entry().Errorf(f, a...)
}

// Warn logs at warn level
func (l *StandardLogger) Warn(f string, a ...any) {
	l.entry().Warnf(f, a...)
}

// NoOpLogger logging implementation that does nothing
type NoOpLogger struct {
	level  Level
	fields map[string]any
}

// NewNoOpLogger instantiates new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{level: Info}
}

// WithFields provides additional fields to include in log output.
// Implemented here primarily to be able to switch between implementations
// without loss of data.
func (l *NoOpLogger) WithFields(fields map[string]any) Logger {
	cp := *l
	cp.fields = fields
	return &cp
}

func (*NoOpLogger) Debug(string, ...any) {}
func (*NoOpLogger) Info(string, ...any)  {}
func (*NoOpLogger) Error(string, ...any) {}
func (*NoOpLogger) Warn(string, ...any)  {}

// SetLevel set log level
func (l *NoOpLogger) SetLevel(level Level) {
	l.level = level
}

// GetLevel get log level
func (l *NoOpLogger) GetLevel() Level {
	return l.level
}
