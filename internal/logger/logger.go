package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process logger. Production mode emits JSON; anything
// else uses the development console encoder.
func Init(mode string) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}

	Set(l)
	Info("logger initialized", map[string]any{"mode": mode})
}

// Set replaces the process logger. Tests use it with zaptest/observer cores.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the underlying zap logger for components that take one injected.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.WithOptions(zap.AddCallerSkip(-1))
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func Info(msg string, fields map[string]any) {
	current().Info(msg, toZap(fields)...)
}

func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toZap(fields)...)
}

func Error(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
	Sync()
	os.Exit(1)
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
