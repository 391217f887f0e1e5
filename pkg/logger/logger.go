package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/plusonehq/plusone-backend/pkg/env"
	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warn-level entries as well as
	// errors. Useful while chasing races in the intake path.
	WarnStack bool
	Output    io.Writer
}

// Logger wraps zerolog with context propagation: request-scoped fields
// ride on the context, so handlers never pass a logger explicitly.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	root := zerolog.New(resolveOutput(opts.Output)).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(level)

	return &Logger{base: &root, warnStack: opts.WarnStack}
}

// resolveOutput honors LOG_FORMAT=console for local development; the
// default is line-delimited JSON for log collectors.
func resolveOutput(w io.Writer) io.Writer {
	if w == nil {
		w = os.Stdout
	}
	if env.Get("LOG_FORMAT", "json") != "console" {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
}

// ParseLevel maps a config string to a zerolog level, falling back to
// info on anything unrecognized rather than failing startup.
func ParseLevel(value string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(value))
	if name == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.attach(ctx, l.fromContext(ctx).With().Interface(key, value).Logger())
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	builder := l.fromContext(ctx).With()
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}
	return l.attach(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

// WithOrderID tags log entries with the aggregate order being touched.
func (l *Logger) WithOrderID(ctx context.Context, orderID int64) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

// WithActorID tags log entries with the acting user.
func (l *Logger) WithActorID(ctx context.Context, actorID int64) context.Context {
	return l.WithField(ctx, "actor_id", actorID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.fromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.fromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.fromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.fromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
