package log

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of an entry.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Fields is the merged key/value set of one entry.
type Fields map[string]interface{}

// Well-known field keys.
const (
	ComponentKey = "component"
	RequestIDKey = "request_id"
	AccountIDKey = "account_id"
)

// Entry is what formatters and outputs receive.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the leveled, structured logger handed to every component
// constructor.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs and exits the process.
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithComponent(component string) Logger
	// WithContext adds the request scope stored by ContextWithRequest.
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Formatter renders an entry to bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives every formatted entry.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// LoggerOption configures NewLogger.
type LoggerOption func(*BaseLogger)

// BaseLogger is the Logger implementation. Derived loggers share the
// formatter and outputs but copy the level.
type BaseLogger struct {
	mu         sync.RWMutex
	opts       handlerOptions
	level      Level
	fields     Fields
	formatter  Formatter
	outputs    []Output
	slogLogger *slog.Logger
}

type requestScopeKey struct{}

// requestScope is the per-request logging context the HTTP layer attaches.
type requestScope struct {
	requestID string
	accountID int64
}

// ContextWithRequest stores a request id, and an account id when non-zero,
// for WithContext to pick up.
func ContextWithRequest(ctx context.Context, requestID string, accountID int64) context.Context {
	if prev, ok := ctx.Value(requestScopeKey{}).(requestScope); ok {
		if requestID == "" {
			requestID = prev.requestID
		}
		if accountID == 0 {
			accountID = prev.accountID
		}
	}
	return context.WithValue(ctx, requestScopeKey{}, requestScope{requestID: requestID, accountID: accountID})
}

// RequestIDFrom returns the request id stored by ContextWithRequest.
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(requestScopeKey{}).(requestScope)
	return s.requestID
}

func contextFields(ctx context.Context) Fields {
	if ctx == nil {
		return nil
	}
	s, ok := ctx.Value(requestScopeKey{}).(requestScope)
	if !ok {
		return nil
	}
	f := Fields{}
	if s.requestID != "" {
		f[RequestIDKey] = s.requestID
	}
	if s.accountID != 0 {
		f[AccountIDKey] = s.accountID
	}
	return f
}

// NewLogger builds a logger. Without options it writes JSON at info level to
// stderr.
func NewLogger(options ...LoggerOption) Logger {
	l := &BaseLogger{
		level:     InfoLevel,
		fields:    Fields{},
		formatter: &JSONFormatter{},
	}
	for _, o := range options {
		o(l)
	}
	if len(l.outputs) == 0 {
		l.outputs = []Output{&ConsoleOutput{}}
	}
	l.buildSlog()
	return l
}

func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) { l.level = level }
}

func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) { l.formatter = formatter }
}

// WithOutput adds an output; it may be given more than once.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) { l.outputs = append(l.outputs, output) }
}
