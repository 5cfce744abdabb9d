// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log provides the package-level logger used by the inspector
// libraries and command line tools.
package log

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cihub/seelog"
)

const defaultLogFormat = "%Date(2006-01-02 15:04:05 MST) | %LEVEL | (%File:%Line in %FuncShort) | %Msg%n"

var (
	logger *DatadogLogger

	// This buffer holds log lines sent to the logger before its
	// initialization. Command line tools configure the logger only after
	// parsing flags and the config file, so early messages are kept here.
	//
	// This buffer should be very short lived.
	logsBuffer           = []func(){}
	bufferLogsBeforeInit = true
	bufferMutex          sync.Mutex
	defaultStackDepth    = 3
)

// maxBufferedLogs bounds the buffer for library users that never set up the logger
const maxBufferedLogs = 1000

// DatadogLogger wrapper structure for seelog
type DatadogLogger struct {
	inner seelog.LoggerInterface
	level seelog.LogLevel
	l     sync.RWMutex
}

// SetupLogger creates a seelog logger writing to w at the given level and
// installs it as the package logger.
func SetupLogger(w io.Writer, level string) error {
	_, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	// Filtering happens in DatadogLogger so the level can change at runtime
	l, err := seelog.LoggerFromWriterWithMinLevelAndFormat(w, seelog.TraceLvl, defaultLogFormat)
	if err != nil {
		return fmt.Errorf("cannot create logger: %w", err)
	}

	SetupDatadogLogger(l, level)
	return nil
}

// SetupDatadogLogger configure logger singleton with seelog interface
func SetupDatadogLogger(l seelog.LoggerInterface, level string) {
	dl := &DatadogLogger{inner: l}

	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		lvl = seelog.InfoLvl
	}
	dl.level = lvl

	// We're not going to call DatadogLogger directly, but using the
	// exported functions, that will give us two frames in the stack
	// trace that should be skipped to get to the original caller.
	dl.inner.SetAdditionalStackDepth(defaultStackDepth) //nolint:errcheck

	bufferMutex.Lock()
	logger = dl
	bufferLogsBeforeInit = false
	pending := logsBuffer
	logsBuffer = []func(){}
	bufferMutex.Unlock()

	// Flushing logs since the logger is now initialized
	for _, logLine := range pending {
		logLine()
	}
}

func addLogToBuffer(logHandle func()) {
	bufferMutex.Lock()
	defer bufferMutex.Unlock()

	if len(logsBuffer) >= maxBufferedLogs {
		return
	}
	logsBuffer = append(logsBuffer, logHandle)
}

func currentLogger() (*DatadogLogger, bool) {
	bufferMutex.Lock()
	defer bufferMutex.Unlock()

	return logger, bufferLogsBeforeInit
}

func (sw *DatadogLogger) changeLogLevel(level string) error {
	lvl, ok := seelog.LogLevelFromString(strings.ToLower(level))
	if !ok {
		return errors.New("bad log level")
	}

	sw.l.Lock()
	defer sw.l.Unlock()
	sw.level = lvl
	return nil
}

func (sw *DatadogLogger) shouldLog(level seelog.LogLevel) bool {
	sw.l.RLock()
	defer sw.l.RUnlock()

	return level >= sw.level
}

func (sw *DatadogLogger) write(level seelog.LogLevel, s string) error {
	sw.l.Lock()
	defer sw.l.Unlock()

	switch level {
	case seelog.TraceLvl:
		sw.inner.Trace(s)
	case seelog.DebugLvl:
		sw.inner.Debug(s)
	case seelog.InfoLvl:
		sw.inner.Info(s)
	case seelog.WarnLvl:
		return sw.inner.Warn(s)
	case seelog.ErrorLvl:
		return sw.inner.Error(s)
	default:
		return sw.inner.Critical(s)
	}
	return nil
}

func buildLogEntry(v ...interface{}) string {
	var fmtBuffer bytes.Buffer

	for i := 0; i < len(v)-1; i++ {
		fmtBuffer.WriteString("%v ")
	}
	fmtBuffer.WriteString("%v")

	return fmt.Sprintf(fmtBuffer.String(), v...)
}

// logMessage sends msg to the logger when it is ready, or buffers the
// replay function while it is not
func logMessage(level seelog.LogLevel, bufferFunc func(), msg func() string) {
	l, buffering := currentLogger()
	if l != nil {
		if l.shouldLog(level) {
			l.write(level, msg()) //nolint:errcheck
		}
		return
	}
	if buffering {
		addLogToBuffer(bufferFunc)
	}
}

// logWithError is the variant of logMessage for levels returning an error. It
// calls write itself so that both paths have the same stack depth.
func logWithError(level seelog.LogLevel, bufferFunc func(), fallbackStderr bool, msg string) error {
	err := errors.New(msg)

	l, buffering := currentLogger()
	if l != nil {
		if !l.shouldLog(level) {
			return err
		}
		if werr := l.write(level, msg); werr != nil {
			return werr
		}
		return err
	}

	if buffering {
		addLogToBuffer(bufferFunc)
	}
	if fallbackStderr {
		fmt.Fprintf(os.Stderr, "%s: %s\n", level.String(), msg)
	}
	return err
}

// Trace logs at the trace level
func Trace(v ...interface{}) {
	logMessage(seelog.TraceLvl, func() { Trace(v...) }, func() string { return buildLogEntry(v...) })
}

// Tracef logs with format at the trace level
func Tracef(format string, params ...interface{}) {
	logMessage(seelog.TraceLvl, func() { Tracef(format, params...) }, func() string { return fmt.Sprintf(format, params...) })
}

// Debug logs at the debug level
func Debug(v ...interface{}) {
	logMessage(seelog.DebugLvl, func() { Debug(v...) }, func() string { return buildLogEntry(v...) })
}

// Debugf logs with format at the debug level
func Debugf(format string, params ...interface{}) {
	logMessage(seelog.DebugLvl, func() { Debugf(format, params...) }, func() string { return fmt.Sprintf(format, params...) })
}

// Info logs at the info level
func Info(v ...interface{}) {
	logMessage(seelog.InfoLvl, func() { Info(v...) }, func() string { return buildLogEntry(v...) })
}

// Infof logs with format at the info level
func Infof(format string, params ...interface{}) {
	logMessage(seelog.InfoLvl, func() { Infof(format, params...) }, func() string { return fmt.Sprintf(format, params...) })
}

// Warn logs at the warn level and returns an error containing the formated log message
func Warn(v ...interface{}) error {
	return logWithError(seelog.WarnLvl, func() { Warn(v...) }, false, buildLogEntry(v...))
}

// Warnf logs with format at the warn level and returns an error containing the formated log message
func Warnf(format string, params ...interface{}) error {
	return logWithError(seelog.WarnLvl, func() { Warnf(format, params...) }, false, fmt.Sprintf(format, params...))
}

// Error logs at the error level and returns an error containing the formated log message
func Error(v ...interface{}) error {
	return logWithError(seelog.ErrorLvl, func() { Error(v...) }, true, buildLogEntry(v...))
}

// Errorf logs with format at the error level and returns an error containing the formated log message
func Errorf(format string, params ...interface{}) error {
	return logWithError(seelog.ErrorLvl, func() { Errorf(format, params...) }, true, fmt.Sprintf(format, params...))
}

// Flush flushes the underlying inner log
func Flush() {
	if l, _ := currentLogger(); l != nil {
		l.l.Lock()
		l.inner.Flush()
		l.l.Unlock()
	}
}

// GetLogLevel returns a seelog native representation of the current log level
func GetLogLevel() (seelog.LogLevel, error) {
	l, _ := currentLogger()
	if l == nil {
		return seelog.InfoLvl, errors.New("cannot get loglevel: logger not initialized")
	}

	l.l.RLock()
	defer l.l.RUnlock()
	return l.level, nil
}

// ChangeLogLevel changes the current log level, valid levels are trace, debug,
// info, warn, error, critical and off
func ChangeLogLevel(level string) error {
	l, _ := currentLogger()
	if l == nil {
		return errors.New("cannot change loglevel: logger not initialized")
	}
	return l.changeLogLevel(level)
}

// ShouldLog returns whether a given log level should be logged by the default logger
func ShouldLog(lvl seelog.LogLevel) bool {
	l, _ := currentLogger()
	return l != nil && l.shouldLog(lvl)
}
