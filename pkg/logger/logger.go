package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/screener/pkg/config"
)

// Logger is a structured logger wrapper around zerolog
// ⭐ SSOT: 모든 로깅은 이 패키지를 통해서만 수행
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger from config.
// Output goes to stderr so CLI commands can stream CSV/JSON results on stdout.
func New(cfg *config.Config) *Logger {
	var output io.Writer = os.Stderr
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return NewWithWriter(output, cfg.LogLevel, cfg.Env)
}

// NewWithWriter creates a JSON logger writing to w
func NewWithWriter(w io.Writer, level string, env string) *Logger {
	zerolog.SetGlobalLevel(parseLogLevel(level))

	zlog := zerolog.New(w).
		With().
		Timestamp().
		Str("service", "screener").
		Str("env", env).
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything (tests, library callers)
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel converts string log level to zerolog.Level
func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.zlog.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.zlog.Info().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.zlog.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.zlog.Error().Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.zlog.Fatal().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}
