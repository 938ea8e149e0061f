package types

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger represents a named logger
type Logger struct {
	*zap.SugaredLogger
	LogsPath string
	Name     string
}

// Named returns a child logger, e.g. "reminder" under "main" logs as "main.reminder"
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.Named(name),
		LogsPath:      l.LogsPath,
		Name:          name,
	}
}

// Log represents a log entry passed to a LogHook
type Log struct {
	Timestamp  time.Time
	Caller     string
	LoggerName string
	Level      zapcore.Level
	Message    string
}

// LogHook is a function that will be called for each log entry
type LogHook func(log Log)
