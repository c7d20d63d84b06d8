package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"github.com/rs/zerolog"
)

var log = &zlog{l: zerolog.New(os.Stdout).With().Timestamp().Logger()}

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zlog struct {
	l zerolog.Logger
}

func (z *zlog) Debug() *LogEvent { return &LogEvent{z.l.Debug()} }
func (z *zlog) Info() *LogEvent  { return &LogEvent{z.l.Info()} }
func (z *zlog) Warn() *LogEvent  { return &LogEvent{z.l.Warn()} }
func (z *zlog) Error() *LogEvent { return &LogEvent{z.l.Error()} }

func (z *zlog) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{z.l.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

func (z *zlog) With(component string) Logger {
	return &zlog{l: z.l.With().Str("component", component).Logger()}
}

// Init initializes the logger based on the given level name
// ("debug", "info", "warning" or "error").
func Init(level string, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = &zlog{l: zerolog.New(output).With().Timestamp().Logger()}

	SetLogLevel(ParseLevel(level))
}

// New returns a Logger writing JSON lines to w. Intended for tests and
// embedding; it does not touch the global level.
func New(w io.Writer) Logger {
	return &zlog{l: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zlog{l: zerolog.Nop()}
}

// Default returns the global logger.
func Default() Logger {
	return log
}

// ParseLevel maps a config level name to a LogLevel, defaulting to InfoLevel.
func ParseLevel(level string) LogLevel {
	switch level {
	case "debug":
		return DebugLevel
	case "warning", "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return log.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return log.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return log.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return log.Error()
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return log.ErrorWithCode(err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.l.Fatal()}
}
