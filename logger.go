package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the process logger.  Events go to stderr in console form
// and, when filePath is set, as JSON lines to an event log that lumberjack
// rotates once it reaches 10MB.  The returned closer flushes and closes the
// event log.
func newLogger(filePath string, debug bool) (zerolog.Logger, io.Closer) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if filePath == "" {
		return zerolog.New(console).Level(level).With().Timestamp().Logger(), nopCloser{}
	}

	events := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
	}
	out := zerolog.MultiLevelWriter(console, events)
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), events
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
