package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a stderr logger; debug lowers the level to Debug.
// Report output goes to stdout, so logs never mix with it.
func NewLogger(debug bool) (*zerolog.Logger, error) {
	return NewLoggerTo(os.Stderr, debug), nil
}

// NewLoggerTo creates a console logger writing to w
func NewLoggerTo(w io.Writer, debug bool) *zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: !IsTerminal(w)}
	logger := zerolog.New(console).Level(level).With().Timestamp().Logger()
	return &logger
}

// IsTerminal reports whether w is a character device
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
