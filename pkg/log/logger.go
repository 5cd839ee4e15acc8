package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	componentAttrKey  = "component"
)

// Options configures the default zerolog provider.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File enables size-based rotation through lumberjack when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output overrides the destination (defaults to stdout). Ignored when File is set.
	Output io.Writer
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(os.Stdout, LevelInfo)
)

// SetupLogger installs a zerolog provider built from opts as the package default
// and routes library warnings (errors.Warn) through it.
func SetupLogger(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if opts.Output != nil {
		w = opts.Output
	}
	if opts.File != "" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    valueOr(opts.MaxSizeMB, 100),
			MaxBackups: valueOr(opts.MaxBackups, 5),
			MaxAge:     valueOr(opts.MaxAgeDays, 30),
			Compress:   true,
		}
	}

	p := NewZerologProvider(w, level)
	SetProvider(p)

	warnLogger := p.GetLoggerWithName("warnings")
	lsErrors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), ErrorTypeKey, fmt.Sprintf("%T", warning))
	})
	return nil
}

// ParseLevel converts a textual level to a Level. An empty string means info.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, lsErrors.NewConfigError("log.level", "must be one of debug, info, warn, error", level)
	}
}

// SetProvider replaces the package-level provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ZerologProvider implements LoggerProvider on top of zerolog.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing JSON lines to w.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	zerolog.ErrorStackMarshaler = marshalStack
	return &ZerologProvider{
		base: zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger(),
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{z: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{z: p.base.With().Str(componentAttrKey, name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel. Loggers handed out earlier keep
// the level they were created with.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

type zerologLogger struct {
	z zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.z.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(l.z.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.z.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(l.z.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.z.With()
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			ctx = ctx.AnErr(ErrAttrKey, err)
		}
		fields = fields[1:]
	}
	if len(fields) > 0 {
		ctx = ctx.Fields(fields)
	}
	return &zerologLogger{z: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.z.GetLevel()
}

func (l *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = appendError(e, ErrAttrKey, err)
		}
		fields = fields[1:]
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			e = appendError(e, key, v)
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}

// appendError writes err under key, adds the cockroachdb stack trace and the
// structured detail of typed errors that implement zerolog.LogObjectMarshaler.
func appendError(e *zerolog.Event, key string, err error) *zerolog.Event {
	e = e.AnErr(key, err)
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceAttrKey, st)
	}
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		e = e.Object(key+"_detail", m)
	}
	return e
}

func marshalStack(err error) interface{} {
	return extractStacktrace(err)
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
