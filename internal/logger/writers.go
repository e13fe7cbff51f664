package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newFormattedWriter wraps output according to format.
// File outputs never get color codes.
func newFormattedWriter(output io.Writer, format LogFormat, noColor bool) io.Writer {
	switch format {
	case FormatJSON:
		return output
	case FormatText:
		return zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: true}
	default:
		return zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: noColor}
	}
}

// NewRotatingFile returns a size-rotated file writer. The parent directory is
// created when missing.
func NewRotatingFile(path string, maxSizeMB, maxBackups int) io.WriteCloser {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		LocalTime:  true,
	}
}

func defaultConsoleOutput() io.Writer {
	return os.Stderr
}
