package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	werrors "github.com/YuminosukeSato/windlofo/pkg/errors"
)

// Format selects the zerolog writer.
type Format string

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
	// FormatConsole writes human readable colored lines.
	FormatConsole Format = "console"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &ZerologLogger{zl: ctx.Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = withError(e, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, isErr := fields[i+1].(error); isErr {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

func withError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err)
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	if m := structuredCause(err); m != nil {
		e = e.Object("error.detail", m)
	}
	return e
}

// structuredCause returns the first error in the chain that knows how to log its fields.
func structuredCause(err error) zerolog.LogObjectMarshaler {
	var (
		evalErr   *werrors.EvaluationError
		schemaErr *werrors.SchemaError
		dataErr   *werrors.InsufficientDataError
		domainErr *werrors.DomainError
	)
	switch {
	case errors.As(err, &evalErr):
		return evalErr
	case errors.As(err, &schemaErr):
		return schemaErr
	case errors.As(err, &dataErr):
		return dataErr
	case errors.As(err, &domainErr):
		return domainErr
	}
	return nil
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ZerologProvider implements LoggerProvider.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a JSON provider writing to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, FormatJSON, level)
}

// NewZerologProviderWithWriter creates a provider writing to w in the given format.
func NewZerologProviderWithWriter(w io.Writer, format Format, level Level) *ZerologProvider {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	base := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologProvider{base: base}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &ZerologLogger{zl: p.base.With().Str("component", name).Logger()}
}

// SetLevel implements LoggerProvider.SetLevel. Loggers handed out earlier keep their level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
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

// ToLogLevel converts a level name to a Level. It panics on unknown names, use
// ParseLevel when the input comes from users.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseLevel converts a level name to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, werrors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(LevelInfo)
)

func init() {
	installWarnSink(globalProvider)
}

// SetProvider replaces the global provider and routes pkg/errors warnings through it.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	globalProvider = p
	globalMu.Unlock()
	installWarnSink(p)
}

// Provider returns the global provider.
func Provider() LoggerProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a named logger from the global provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}

// Setup configures the global provider from a level name and output format.
func Setup(w io.Writer, level string, format Format) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetProvider(NewZerologProviderWithWriter(w, format, lvl))
	return nil
}

func installWarnSink(p LoggerProvider) {
	logger := p.GetLoggerWithName("warnings")
	werrors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), ErrorTypeKey, errorTypeName(w))
	})
}

func errorTypeName(err error) string {
	if _, ok := err.(*werrors.UndefinedMetricWarning); ok {
		return "UndefinedMetricWarning"
	}
	return "warning"
}
