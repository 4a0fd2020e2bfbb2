package stache

import (
	"io"

	"go.followtheprocess.codes/log"
)

// newLogger returns the application logger, writing to w at info level, or debug
// level if debug is set.
func newLogger(debug bool, w io.Writer) *log.Logger {
	level := log.LevelInfo
	if debug {
		level = log.LevelDebug
	}

	return log.New(w, log.Prefix("stache"), log.WithLevel(level))
}
