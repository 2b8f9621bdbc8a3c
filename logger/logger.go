// package logger is a package that provides a leveled structured logger that's
// context.Context aware.
package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

// Level is the severity of a log line.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	CRIT
)

var levelNames = map[Level]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
	CRIT:  "crit",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses a level name, case insensitively. Unknown names parse
// as ERROR.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	for lvl, name := range levelNames {
		if name == s {
			return lvl
		}
	}
	return ERROR
}

// Logger represents a structured leveled logger.
type Logger interface {
	Debug(msg string, pairs ...interface{})
	Info(msg string, pairs ...interface{})
	Warn(msg string, pairs ...interface{})
	Error(msg string, pairs ...interface{})
	Crit(msg string, pairs ...interface{})

	// With returns a Logger that prefixes every line with pairs.
	With(pairs ...interface{}) Logger
}

// DefaultLogger is used by the package level functions when the context does
// not carry a Logger.
var DefaultLogger Logger = New(log.New(os.Stdout, "", 0), ERROR)

// logger is an implementation of the Logger interface backed by the stdlib's
// logging facility. Lines are written in logfmt.
type logger struct {
	*log.Logger
	level   Level
	context []interface{}
}

// New wraps the log.Logger to implement the Logger interface. Lines below
// level are dropped.
func New(l *log.Logger, level Level) Logger {
	return &logger{
		Logger: l,
		level:  level,
	}
}

// Log logs the pairs in logfmt. It will treat consecutive arguments as a key
// value pair.
func (l *logger) Log(level Level, msg string, pairs ...interface{}) {
	if level < l.level {
		return
	}
	all := make([]interface{}, 0, len(l.context)+len(pairs))
	all = append(all, l.context...)
	all = append(all, pairs...)
	l.Println(fmt.Sprintf("status=%s", level), msg, message(all...))
}

func (l *logger) Debug(msg string, pairs ...interface{}) { l.Log(DEBUG, msg, pairs...) }
func (l *logger) Info(msg string, pairs ...interface{})  { l.Log(INFO, msg, pairs...) }
func (l *logger) Warn(msg string, pairs ...interface{})  { l.Log(WARN, msg, pairs...) }
func (l *logger) Error(msg string, pairs ...interface{}) { l.Log(ERROR, msg, pairs...) }
func (l *logger) Crit(msg string, pairs ...interface{})  { l.Log(CRIT, msg, pairs...) }

func (l *logger) With(pairs ...interface{}) Logger {
	ctx := make([]interface{}, 0, len(l.context)+len(pairs))
	ctx = append(ctx, l.context...)
	ctx = append(ctx, pairs...)
	return &logger{Logger: l.Logger, level: l.level, context: ctx}
}

func message(pairs ...interface{}) string {
	if len(pairs) == 1 {
		return fmt.Sprintf("%v", pairs[0])
	}

	var parts []string

	for i := 0; i < len(pairs); i += 2 {
		// This conditional means that the pairs are uneven and we've
		// reached the end of iteration. We treat the last value as a
		// simple string message. Given an input pair as:
		//
		//	["key", "value", "message"]
		//
		// The output will be:
		//
		//	key=value message
		if len(pairs) == i+1 {
			parts = append(parts, fmt.Sprintf("%v", pairs[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%v", pairs[i], pairs[i+1]))
		}
	}

	return strings.Join(parts, " ")
}

// WithLogger inserts a Logger into the provided context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns a Logger from the context.
func FromContext(ctx context.Context) (Logger, bool) {
	l, ok := ctx.Value(loggerKey).(Logger)
	return l, ok
}

func Info(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx).Info(msg, pairs...)
}

func Debug(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx).Debug(msg, pairs...)
}

func Warn(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx).Warn(msg, pairs...)
}

func Error(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx).Error(msg, pairs...)
}

func Crit(ctx context.Context, msg string, pairs ...interface{}) {
	withLogger(ctx).Crit(msg, pairs...)
}

func withLogger(ctx context.Context) Logger {
	if l, ok := FromContext(ctx); ok {
		return l
	}
	return DefaultLogger
}

type key int

const (
	loggerKey key = iota
)
