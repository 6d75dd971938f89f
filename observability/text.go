package observability

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

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
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type textSink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// textLogger writes one line per record:
//
//	time=2024-01-02T15:04:05Z level=INFO msg="pdf written" pages=3
type textLogger struct {
	sink   *textSink
	level  Level
	fields []Field
}

// NewLogger returns a Logger writing key=value lines to w. Records below
// level are dropped. It is safe for concurrent use.
func NewLogger(w io.Writer, level Level) Logger {
	return &textLogger{sink: &textSink{w: w, now: time.Now}, level: level}
}

func (l *textLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }
func (l *textLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields) }
func (l *textLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields) }
func (l *textLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *textLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &textLogger{sink: l.sink, level: l.level, fields: merged}
}

func (l *textLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString("time=")
	b.WriteString(l.sink.now().UTC().Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(level.String())
	b.WriteString(" msg=")
	b.WriteString(quote(msg))
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			b.WriteByte(' ')
			b.WriteString(f.Key())
			b.WriteByte('=')
			b.WriteString(formatValue(f.Value()))
		}
	}
	b.WriteByte('\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	io.WriteString(l.sink.w, b.String())
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case error:
		return quote(t.Error())
	case string:
		return quote(t)
	case time.Duration:
		return t.String()
	}
	return quote(fmt.Sprint(v))
}

// quote leaves simple tokens bare and quotes anything with spaces, quotes,
// '=' or control characters.
func quote(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '=' || r == 0x7f || r > 0x7e {
			return strconv.Quote(s)
		}
	}
	return s
}

// logTracer reports every finished span as a debug record.
type logTracer struct{ logger Logger }

// NewLogTracer returns a Tracer that logs span name, duration, tags and error
// through logger when the span finishes.
func NewLogTracer(logger Logger) Tracer { return logTracer{logger: logger} }

func (t logTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &logSpan{logger: t.logger, name: name, start: time.Now()}
}

type logSpan struct {
	mu     sync.Mutex
	logger Logger
	name   string
	start  time.Time
	fields []Field
	err    error
}

func (s *logSpan) SetTag(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = append(s.fields, anyField{key, value})
}

func (s *logSpan) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *logSpan) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := append([]Field{String("span", s.name), Duration("duration", time.Since(s.start))}, s.fields...)
	if s.err != nil {
		s.logger.Warn("span failed", append(fields, Error("error", s.err))...)
		return
	}
	s.logger.Debug("span finished", fields...)
}

type anyField struct {
	key string
	val interface{}
}

func (f anyField) Key() string        { return f.key }
func (f anyField) Value() interface{} { return f.val }
