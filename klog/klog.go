// SPDX-License-Identifier: Unlicense OR MIT

// Package klog is a minimal leveled logger over io.Writer, formatting
// every record with plain fmt.Fprintf verbs. There is no hosted
// filesystem to write a log file
// to, and no process environment to pull a reflection-heavy
// structured-logging package's dependencies into — so this wraps
// whatever io.Writer is handed to it (the VGA console once Boot has
// brought it up, anything in tests) instead.
package klog

import (
	"fmt"
	"io"
)

// Level orders log records by severity; records below a Logger's
// minimum level are dropped before anything is formatted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is one key/value pair attached to a record. Values are
// formatted with %v rather than reflected over, so a driver's Init
// path can log freely without pulling in an encoder.
type Field struct {
	Key string
	Val interface{}
}

// F constructs a Field; the common call shape is Info("msg", F("k", v), F("k2", v2)).
func F(key string, val interface{}) Field {
	return Field{Key: key, Val: val}
}

// Logger writes leveled records to out. The zero value has a nil out
// and drops everything; construct one with New.
type Logger struct {
	out io.Writer
	min Level
}

// New returns a Logger writing to out, with LevelInfo as its minimum.
func New(out io.Writer) *Logger {
	return &Logger{out: out, min: LevelInfo}
}

// SetLevel changes the minimum level that reaches out.
func (l *Logger) SetLevel(level Level) {
	l.min = level
}

func (l *Logger) log(level Level, msg string, fields []Field) {
	if l == nil || l.out == nil || level < l.min {
		return
	}
	fmt.Fprintf(l.out, "[%s] %s", level, msg)
	for _, f := range fields {
		fmt.Fprintf(l.out, " %s=%v", f.Key, f.Val)
	}
	fmt.Fprint(l.out, "\n")
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }
