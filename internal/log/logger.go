// Package log tags slog records with the component that emitted them and
// carries a request-scoped logger through HTTP handlers.
package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger whose records carry at most one component
// attribute. The embedded logger already holds it, so the slog level
// methods are used as they are.
type Logger struct {
	*slog.Logger

	// base has every attribute except the component.
	base      *slog.Logger
	component string
}

// Config selects the handler and the component name. Level only applies
// when Handler is nil.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return wrap(slog.New(handler), config.Component)
}

func wrap(base *slog.Logger, component string) *Logger {
	tagged := base
	if component != "" {
		tagged = base.With(FieldComponent, component)
	}
	return &Logger{Logger: tagged, base: base, component: component}
}

// With adds attributes and keeps the component.
func (l *Logger) With(args ...any) *Logger {
	return wrap(l.base.With(args...), l.component)
}

// WithComponent replaces the component; other attributes are kept.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

func (l *Logger) Component() string {
	return l.component
}
