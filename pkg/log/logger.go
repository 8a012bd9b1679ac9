// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log provides the logger used throughout beastie.
package log

import (
	"log"
	"os"
)

// Logger describes a logger to be used in beastie.
type Logger interface {
	// Debugf logs a debug message; only the default logger's verbose
	// mode actually prints it.
	Debugf(format string, args ...interface{})

	// Warnf logs a warning message.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message.
	Errorf(format string, args ...interface{})

	// Fatalf logs a fatal message and immediately exits the application
	// with os.Exit.
	Fatalf(format string, args ...interface{})
}

// DefaultLogger is the logger used by default everywhere within beastie.
var DefaultLogger Logger

func init() {
	DefaultLogger = &logWrapper{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type logWrapper struct {
	Logger  *log.Logger
	Verbose bool
}

// SetVerbose toggles whether Debugf actually emits output on the default logger.
func SetVerbose(v bool) {
	if lw, ok := DefaultLogger.(*logWrapper); ok {
		lw.Verbose = v
	}
}

// Debugf implements Logger.
func (logger *logWrapper) Debugf(format string, args ...interface{}) {
	if !logger.Verbose {
		return
	}
	logger.Logger.Printf("[beastie][DEBUG] "+format, args...)
}

// Warnf implements Logger.
func (logger *logWrapper) Warnf(format string, args ...interface{}) {
	logger.Logger.Printf("[beastie][WARN] "+format, args...)
}

// Errorf implements Logger.
func (logger *logWrapper) Errorf(format string, args ...interface{}) {
	logger.Logger.Printf("[beastie][ERROR] "+format, args...)
}

// Fatalf implements Logger.
func (logger *logWrapper) Fatalf(format string, args ...interface{}) {
	logger.Logger.Fatalf("[beastie][FATAL] "+format, args...)
}

// Debugf logs a debug message.
func Debugf(format string, args ...interface{}) {
	DefaultLogger.Debugf(format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	DefaultLogger.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	DefaultLogger.Errorf(format, args...)
}

// Fatalf logs a fatal message and immediately exits the application
// with os.Exit (which is expected to be called by the DefaultLogger.Fatalf).
func Fatalf(format string, args ...interface{}) {
	DefaultLogger.Fatalf(format, args...)
}
