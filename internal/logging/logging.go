// Package logging builds the logrus loggers used across webtodo.
//
// The TUI owns the terminal, so interactive runs log to a file; `serve` logs
// to stderr.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

func New(w io.Writer, debug bool) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	if debug {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// OpenFile appends to path, creating parent directories. An empty path
// yields a discarding logger.
func OpenFile(path string, debug bool) (*log.Logger, io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Discard(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(f, debug), f, nil
}

func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
