// Package log provides structured logging for toth using zap.
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with toth-specific helpers.
type Logger struct {
	*zap.Logger
}

var (
	// L is the global logger instance.
	L    *Logger
	once sync.Once
)

// Init initializes the global logger with the given configuration.
// Safe to call multiple times; only the first call takes effect.
func Init(debug bool) {
	once.Do(func() {
		L = New(debug)
	})
}

// New creates a new Logger instance.
func New(debug bool) *Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}

	// Shorter timestamps in development
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fallback to no-op if config fails
		logger = zap.NewNop()
	}

	return &Logger{Logger: logger}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// RoutineRegister logs a routine being added to a library's table.
func (l *Logger) RoutineRegister(lib, kind, name string, numArgs int) {
	l.Debug("registered",
		zap.String("lib", lib),
		zap.String("kind", kind),
		zap.String("fn", name),
		zap.Int("args", numArgs),
	)
}

// LibraryLoad logs a library load with its handle ID.
func (l *Logger) LibraryLoad(name, id string) {
	l.Debug("loaded",
		zap.String("lib", name),
		zap.String("id", id),
	)
}

// LibraryUnload logs a library unload.
func (l *Logger) LibraryUnload(name string) {
	l.Debug("unloaded",
		zap.String("lib", name),
	)
}

// SymbolLookup logs a symbol resolution attempt and where it resolved.
func (l *Logger) SymbolLookup(lib, name, source string) {
	l.Debug("lookup",
		zap.String("lib", lib),
		zap.String("fn", name),
		zap.String("src", source),
	)
}

// Policy logs a change to a library's symbol-resolution policy.
func (l *Logger) Policy(lib, flag string, value bool) {
	l.Debug("policy",
		zap.String("lib", lib),
		zap.String("flag", flag),
		zap.Bool("value", value),
	)
}

// WithLibrary returns a logger with the library field preset.
func (l *Logger) WithLibrary(name string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("lib", name))}
}

// Field helpers for common patterns.

// Lib creates a library name field.
func Lib(name string) zap.Field {
	return zap.String("lib", name)
}

// Fn creates a routine name field.
func Fn(name string) zap.Field {
	return zap.String("fn", name)
}

// Kind creates a routine kind field.
func Kind(kind string) zap.Field {
	return zap.String("kind", kind)
}
