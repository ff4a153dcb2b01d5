package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// handlerOptions are carried across derived loggers so that redaction and
// sampling survive With/WithComponent.
type handlerOptions struct {
	redactKeys       []string
	sampleInitial    int
	sampleThereafter int
}

var exitFunc = os.Exit

func (l *BaseLogger) buildSlog() {
	h := newBridgeHandler(l).withRedactions(l.opts.redactKeys).withSampler(l.opts.sampleInitial, l.opts.sampleThereafter)
	var handler slog.Handler = h
	if attrs := attrsFromMap(l.fields); len(attrs) > 0 {
		handler = h.WithAttrs(attrs)
	}
	l.slogLogger = slog.New(handler)
}

func (l *BaseLogger) clone(extra Fields) *BaseLogger {
	l.mu.RLock()
	level := l.level
	l.mu.RUnlock()
	fields := make(Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	nl := &BaseLogger{
		level:     level,
		fields:    fields,
		formatter: l.formatter,
		outputs:   l.outputs,
		opts:      l.opts,
	}
	nl.buildSlog()
	return nl
}

func (l *BaseLogger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *BaseLogger) log(level Level, msg string, attrs []slog.Attr) {
	if !l.enabled(level) {
		return
	}
	// skip runtime.Callers, log and the leveled method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), toSlogLevel(level), msg, pcs[0])
	r.AddAttrs(attrs...)
	_ = l.slogLogger.Handler().Handle(context.Background(), r)
	if level == FatalLevel {
		exitFunc(1)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, attrsFromFieldSlice(fields))
}
func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, attrsFromFieldSlice(fields))
}
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, attrsFromFieldSlice(fields))
}
func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, attrsFromFieldSlice(fields))
}
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	m := make(Fields, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return l.clone(m)
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.clone(fields)
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.clone(Fields{ComponentKey: component})
}

func (l *BaseLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *BaseLogger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// WithRedaction replaces the values of the given keys with "[REDACTED]".
func WithRedaction(keys ...string) LoggerOption {
	return func(l *BaseLogger) { l.opts.redactKeys = append(l.opts.redactKeys, keys...) }
}

// WithSampling logs the first initial entries per message, then every
// thereafter-th.
func WithSampling(initial, thereafter int) LoggerOption {
	return func(l *BaseLogger) {
		l.opts.sampleInitial = initial
		l.opts.sampleThereafter = thereafter
	}
}

