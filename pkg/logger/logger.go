package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

var (
	Log     *types.Logger
	logHook atomic.Value // types.LogHook
)

// Config represents configuration options for logger initialization
type Config struct {
	Debug        bool           // Enable debug logging
	TimeLocation *time.Location // Time zone of log timestamps (UTC when nil)
	LogToFile    bool           // Enable logging to a file
	LogsDir      string         // Set the directory for logs (default: current working directory)
}

// SetLogHook sets a hook function that will be called for each log entry
func SetLogHook(hook types.LogHook) {
	logHook.Store(hook)
	Log.Debug("Log hook set")
}

// Init is a function to initialize logger with extended configuration
func Init(config Config) error {
	var l types.Logger
	l.Name = "main"

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	// Set log directory, default to current working directory
	if config.LogsDir == "" {
		l.LogsPath = wd
	} else {
		l.LogsPath = filepath.Join(wd, config.LogsDir)
	}

	timeLocation := config.TimeLocation
	if timeLocation == nil {
		timeLocation = time.UTC
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     timeEncoder(timeLocation),
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var level zapcore.Level
	if config.Debug {
		level = zapcore.DebugLevel
	} else {
		level = zapcore.InfoLevel
	}

	// Console encoder with colors
	consoleEncoderConfig := encoderConfig
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)

	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level))

	// JSON file output without colors
	if config.LogToFile {
		if err = os.MkdirAll(l.LogsPath, os.ModePerm); err != nil {
			return err
		}

		fileEncoderConfig := encoderConfig
		fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		fileEncoder := zapcore.NewJSONEncoder(fileEncoderConfig)

		mainLogPath := filepath.Join(l.LogsPath, fmt.Sprintf("%s.log", time.Now().In(timeLocation).Format("2006-01-02 15:04")))
		fileWriter, errOpenFile := os.OpenFile(mainLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if errOpenFile != nil {
			return errOpenFile
		}

		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(fileWriter), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Hooks(func(entry zapcore.Entry) error {
		if hook, ok := logHook.Load().(types.LogHook); ok && hook != nil {
			hook(types.Log{
				Timestamp:  entry.Time,
				Caller:     entry.Caller.String(),
				LoggerName: entry.LoggerName,
				Level:      entry.Level,
				Message:    entry.Message,
			})
		}
		return nil
	}))

	l.SugaredLogger = log.Named(l.Name).Sugar()
	Log = &l

	return nil
}

// Named returns a new logger with the specified name ("reminder", "poll", etc.)
func Named(name string) (*types.Logger, error) {
	if Log == nil {
		return nil, fmt.Errorf("logger is not initialized")
	}
	return Log.Named(name), nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *types.Logger {
	return &types.Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		Name:          "nop",
	}
}

func timeEncoder(loc *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format("2006-01-02 15:04:05"))
	}
}
