// ///////////////////////////////////////////////////////////////////////////
//
// # MPTT - Nested-set tree maintenance
//
// Copyright (C) 2023 - 2026, pgEdge (https://www.pgedge.com/)
//
// This software is released under the PostgreSQL License:
// https://opensource.org/license/postgresql
//
// ///////////////////////////////////////////////////////////////////////////

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	Log = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "mptt",
	})
)

func SetLevel(level log.Level) {
	Log.SetLevel(level)
}

// Configure sets the level (debug, info, warn, error) and the output format
// (text, json, logfmt). Empty values leave the current setting alone.
func Configure(level, format string) error {
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		Log.SetLevel(lvl)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
	case "text":
		Log.SetFormatter(log.TextFormatter)
	case "json":
		Log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		Log.SetFormatter(log.LogfmtFormatter)
	default:
		return fmt.Errorf("invalid log format %q (expected text, json or logfmt)", format)
	}
	return nil
}

func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// With returns a child logger carrying keyvals, e.g. the tree and scope an
// HTTP request or scheduled job works on.
func With(keyvals ...any) *log.Logger {
	return Log.With(keyvals...)
}

func Info(format string, args ...any) {
	Log.Infof(format, args...)
}

func Debug(format string, args ...any) {
	Log.Debugf(format, args...)
}

func Warn(format string, args ...any) {
	Log.Warnf(format, args...)
}

func Error(format string, args ...any) error {
	Log.Errorf(format, args...)
	return fmt.Errorf(format, args...)
}

func Fatal(msg any, args ...any) {
	Log.Fatal(msg, args...)
}
