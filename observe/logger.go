package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogLevel orders log severities.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel maps a level name to a LogLevel. Unknown names are info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Log formats.
const (
	// FormatText writes "15:04:05 WARN msg key=value" lines for terminals.
	FormatText = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON = "json"
)

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err builds an "error" Field. A nil error yields an empty string.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

type logger struct {
	level  LogLevel
	json   bool
	out    *lockedWriter
	fields []Field
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger returns a text logger writing to stderr.
func NewLogger(level string) Logger {
	return NewFormatLogger(FormatText, level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewFormatLogger(FormatJSON, level, w)
}

// NewFormatLogger returns a logger in the given format; "" means text.
func NewFormatLogger(format, level string, w io.Writer) Logger {
	return &logger{
		level: ParseLogLevel(level),
		json:  format == FormatJSON,
		out:   &lockedWriter{w: w},
	}
}

// WithOperation returns a logger that adds op.id and op.component to
// every line.
func (l *logger) WithOperation(meta OpMeta) Logger {
	fields := make([]Field, 0, len(l.fields)+2)
	fields = append(fields, l.fields...)
	fields = append(fields, F("op.id", meta.OpID()))
	if meta.Component != "" {
		fields = append(fields, F("op.component", meta.Component))
	}
	return &logger{level: l.level, json: l.json, out: l.out, fields: fields}
}

func (l *logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *logger) log(ctx context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	all := make([]Field, 0, len(l.fields)+len(fields)+2)
	all = append(all, l.fields...)
	all = append(all, fields...)
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			all = append(all, F("trace_id", sc.TraceID().String()), F("span_id", sc.SpanID().String()))
		}
	}
	for i, f := range all {
		if isRedactedField(f.Key) {
			all[i].Value = "[REDACTED]"
		}
	}

	now := time.Now()
	var line []byte
	if l.json {
		line = encodeJSON(now, level, msg, all)
	} else {
		line = encodeText(now, level, msg, all)
	}
	if line == nil {
		return
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(line)
}

func encodeJSON(now time.Time, level LogLevel, msg string, fields []Field) []byte {
	entry := make(map[string]any, len(fields)+3)
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["timestamp"] = now.UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	return append(data, '\n')
}

func encodeText(now time.Time, level LogLevel, msg string, fields []Field) []byte {
	var b strings.Builder
	b.WriteString(now.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(level.String()))
	b.WriteByte(' ')
	b.WriteString(msg)

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	for _, f := range fields {
		v := fmt.Sprint(f.Value)
		if v == "" {
			continue
		}
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(v)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func isRedactedField(key string) bool {
	for _, r := range RedactedFields {
		if strings.EqualFold(r, key) {
			return true
		}
	}
	return false
}

var _ Logger = (*logger)(nil)
