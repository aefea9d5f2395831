// Package logging builds the loggers used across tether: std
// log.Logger values with a bracketed component prefix, writing to
// stderr and optionally mirrored to a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures logger construction.
type Options struct {
	// File, when non-empty, mirrors output to a rotating log file.
	File string

	// MaxSizeMB caps a log file before rotation. Default 10.
	MaxSizeMB int

	// MaxBackups is how many rotated files to keep. Default 3.
	MaxBackups int

	// Quiet drops the stderr sink, leaving only the file (if any).
	Quiet bool
}

// New returns a logger for a component, prefix "[component] ".
func New(component string, opts Options) *log.Logger {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 3
	}

	var sinks []io.Writer
	if !opts.Quiet {
		sinks = append(sinks, os.Stderr)
	}
	if opts.File != "" {
		sinks = append(sinks, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		})
	}

	var out io.Writer
	switch len(sinks) {
	case 0:
		out = io.Discard
	case 1:
		out = sinks[0]
	default:
		out = io.MultiWriter(sinks...)
	}

	return log.New(out, "["+component+"] ", log.LstdFlags)
}
