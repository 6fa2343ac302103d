// Package logx wraps github.com/rs/zerolog in a small Logger used
// throughout the scheduler and profile layers. Modeled on the
// retrieval pack's own logx wrapper: console-friendly output, a Field
// constructor per value type, and a zero value that is a safe no-op so
// components can be constructed before a real logger is wired in.
package logx

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Field mutates a zerolog event; it mirrors the ergonomics of slog.Attr
// without depending on slog.
type Field func(e *zerolog.Event)

func String(k, v string) Field    { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field   { return func(e *zerolog.Event) { e.Int(k, v) } }
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(k, v) }
}
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field        { return func(e *zerolog.Event) { e.Interface(k, v) } }
func Err(err error) Field {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Err(err)
		}
	}
}

// Logger is a lightweight structured logger. Its zero value is a safe
// no-op: a component that hasn't been handed a real Logger yet can still
// call every method without a nil check.
type Logger struct {
	zl     zerolog.Logger
	has    bool
	fields []Field
}

// Nop returns a logger that never writes anything.
func Nop() Logger {
	return Logger{zl: zerolog.Nop(), has: true}
}

// NewConsole creates a console logger at the given level ("debug",
// "info", "warn", "error"; anything else defaults to "info").
func NewConsole(level string) Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
	zl := zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger()
	return Logger{zl: zl, has: true}
}

// IsZero reports whether l is the unconfigured zero value.
func (l Logger) IsZero() bool { return !l.has }

func (l Logger) root() zerolog.Logger {
	if l.has {
		return l.zl
	}
	return zerolog.Nop()
}

// With returns a derived Logger that stamps fields onto every event it
// subsequently emits, in addition to whatever's passed at the call site.
func (l Logger) With(fields ...Field) Logger {
	return Logger{
		zl:     l.root(),
		has:    true,
		fields: append(append([]Field(nil), l.fields...), fields...),
	}
}

func (l Logger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range l.fields {
		f(ev)
	}
	for _, f := range fields {
		f(ev)
	}
	ev.Msg(msg)
}

func (l Logger) Debug(msg string, fields ...Field) { zl := l.root(); l.emit(zl.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { zl := l.root(); l.emit(zl.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { zl := l.root(); l.emit(zl.Warn(), msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { zl := l.root(); l.emit(zl.Error(), msg, fields) }

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
