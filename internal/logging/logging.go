// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging is a small leveled logger wrapping the standard
// library log.Logger, matching the plain log.Printf texture the
// teacher uses throughout cmd/ rather than reaching for a structured
// logging library (SPEC_FULL.md §4.14). Every line it logs is also
// published on the event bus's "log" topic so a connected supervisor
// sees it without tailing a file.
package logging

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mepsan/dartgw/internal/eventbus"
)

// Level orders the severities a Logger can filter on.
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
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is what gets published on the eventbus "log" topic.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Logger filters by minimum level, writes through the standard
// library logger, and publishes every accepted line on the bus.
type Logger struct {
	min  Level
	std  *log.Logger
	bus  *eventbus.Bus
}

// New creates a Logger writing to stderr (the teacher's own cmd/
// commands never redirect log output elsewhere) at the given minimum
// level. bus may be nil, in which case lines are only written to std.
func New(min Level, bus *eventbus.Bus) *Logger {
	return &Logger{
		min: min,
		std: log.New(os.Stderr, "", log.LstdFlags),
		bus: bus,
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.std.Printf("[%s] %s", level, msg)
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{
			Topic: eventbus.TopicLog,
			Payload: Entry{
				Time:    time.Now(),
				Level:   level,
				Message: msg,
			},
		})
	}
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
