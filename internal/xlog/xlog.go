// Package xlog is a small per-subsystem verbosity logger over the
// standard library's log package. Coronet's domain packages (netsock,
// mpi, pfc) each get their own named logger so a caller can dial one
// subsystem's chatter up or down without touching the others. Writing
// straight to stdlib log, guarded by verbosity booleans, keeps this
// package free of an ecosystem structured-logging dependency that
// nothing else in the surrounding codebase pulls in either.
package xlog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

// Level is a per-logger verbosity gate.
type Level int32

const (
	LevelSilent Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger is one named, independently-leveled log sink.
type Logger struct {
	name  string
	level atomic.Int32
	out   *log.Logger
}

// New creates a Logger under name, writing to stderr, defaulting to
// LevelWarn.
func New(name string) *Logger {
	l := &Logger{
		name: name,
		out:  log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
	}
	l.level.Store(int32(LevelWarn))
	return l
}

func (l *Logger) SetLevel(lv Level) { l.level.Store(int32(lv)) }
func (l *Logger) Level() Level      { return Level(l.level.Load()) }

func (l *Logger) log(lv Level, tag string, format string, args ...any) {
	if Level(l.level.Load()) < lv {
		return
	}
	l.out.Printf("%s [%s] %s", tag, l.name, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, "ERROR", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, "WARN", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, "INFO", format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "DEBUG", format, args...) }
