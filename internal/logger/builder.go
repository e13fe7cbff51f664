package logger

import (
	"io"
	stdlog "log"

	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/common/errorwrapper"
	"github.com/aleister1102/eventextract/internal/config"
)

// LoggerBuilder provides fluent interface for building loggers
type LoggerBuilder struct {
	level         zerolog.Level
	format        LogFormat
	console       io.Writer
	filePath      string
	maxSizeMB     int
	maxBackups    int
	service       string
	captureStdLog bool
	levelErr      error
}

// NewLoggerBuilder creates a new logger builder writing console output to stderr
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{
		level:         zerolog.InfoLevel,
		format:        FormatConsole,
		console:       defaultConsoleOutput(),
		maxSizeMB:     config.DefaultMaxLogSizeMB,
		maxBackups:    config.DefaultMaxLogBackups,
		captureStdLog: true,
	}
}

// WithConfig applies the log section of the application config
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	lb.level, lb.levelErr = ParseLevel(cfg.LogLevel)
	lb.format = ParseFormat(cfg.LogFormat)
	lb.filePath = cfg.LogFile
	if cfg.MaxLogSizeMB > 0 {
		lb.maxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		lb.maxBackups = cfg.MaxLogBackups
	}
	return lb
}

// WithConsoleOutput redirects console output; nil disables it
func (lb *LoggerBuilder) WithConsoleOutput(w io.Writer) *LoggerBuilder {
	lb.console = w
	return lb
}

// WithService tags every entry with a service name
func (lb *LoggerBuilder) WithService(name string) *LoggerBuilder {
	lb.service = name
	return lb
}

// WithoutStdLog leaves the standard library logger untouched
func (lb *LoggerBuilder) WithoutStdLog() *LoggerBuilder {
	lb.captureStdLog = false
	return lb
}

// Build creates the logger instance
func (lb *LoggerBuilder) Build() (zerolog.Logger, error) {
	if lb.levelErr != nil {
		return zerolog.Nop(), lb.levelErr
	}

	var writers []io.Writer
	if lb.console != nil {
		writers = append(writers, newFormattedWriter(lb.console, lb.format, false))
	}
	if lb.filePath != "" {
		file := NewRotatingFile(lb.filePath, lb.maxSizeMB, lb.maxBackups)
		writers = append(writers, newFormattedWriter(file, lb.format, true))
	}
	if len(writers) == 0 {
		return zerolog.Nop(), errorwrapper.NewError("no output writers configured")
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lb.level).
		With().
		Timestamp()
	if lb.service != "" {
		ctx = ctx.Str("service", lb.service)
	}
	logger := ctx.Logger()

	if lb.captureStdLog {
		stdlog.SetOutput(logger)
		stdlog.SetFlags(0)
	}
	return logger, nil
}
