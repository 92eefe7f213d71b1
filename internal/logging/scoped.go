// Package logging provides the per-operation event sinks used during a build
// attempt. Each ScopedLogger forwards to slog and remembers the warnings and
// errors it emitted so the attempt can be summarized once it settles.
package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ScopedLogger is the writable event sink of a single operation or plugin.
type ScopedLogger struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	warnings []error
	errors   []error
}

// Name returns the scope this logger was created for.
func (l *ScopedLogger) Name() string {
	return l.name
}

// Logger returns the underlying slog logger with the scope attached.
func (l *ScopedLogger) Logger() *slog.Logger {
	return l.logger
}

// Debug logs a debug message.
func (l *ScopedLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an informational message.
func (l *ScopedLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// EmitWarning logs and records a warning.
func (l *ScopedLogger) EmitWarning(err error) {
	l.mu.Lock()
	l.warnings = append(l.warnings, err)
	l.mu.Unlock()
	l.logger.Warn(err.Error())
}

// EmitError logs and records an error. A task whose sink holds errors
// finishes as a failure.
func (l *ScopedLogger) EmitError(err error) {
	l.mu.Lock()
	l.errors = append(l.errors, err)
	l.mu.Unlock()
	l.logger.Error(err.Error())
}

// HasErrors reports whether any error was emitted.
func (l *ScopedLogger) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors) > 0
}

func (l *ScopedLogger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = nil
	l.errors = nil
}

func (l *ScopedLogger) collect() (warnings, errs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.warnings {
		warnings = append(warnings, fmt.Sprintf("[%s] %s", l.name, w))
	}
	for _, e := range l.errors {
		errs = append(errs, fmt.Sprintf("[%s] %s", l.name, e))
	}
	return warnings, errs
}

// Manager hands out scoped loggers and aggregates what they recorded.
type Manager struct {
	base *slog.Logger

	mu      sync.Mutex
	loggers map[string]*ScopedLogger
}

// NewManager creates a manager whose loggers write through base.
func NewManager(base *slog.Logger) *Manager {
	return &Manager{
		base:    base,
		loggers: make(map[string]*ScopedLogger),
	}
}

// Scoped returns the logger for name, creating it on first use.
func (m *Manager) Scoped(name string) *ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[name]; ok {
		return l
	}
	l := &ScopedLogger{name: name, logger: m.base.With("scope", name)}
	m.loggers[name] = l
	return l
}

// Reset forgets the warnings and errors of every logger. It is called at
// the start of each build attempt.
func (m *Manager) Reset() {
	for _, l := range m.sorted() {
		l.reset()
	}
}

// Warnings returns every recorded warning, prefixed with its scope.
func (m *Manager) Warnings() []string {
	var out []string
	for _, l := range m.sorted() {
		w, _ := l.collect()
		out = append(out, w...)
	}
	return out
}

// Errors returns every recorded error, prefixed with its scope.
func (m *Manager) Errors() []string {
	var out []string
	for _, l := range m.sorted() {
		_, e := l.collect()
		out = append(out, e...)
	}
	return out
}

func (m *Manager) sorted() []*ScopedLogger {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*ScopedLogger, 0, len(names))
	for _, name := range names {
		out = append(out, m.loggers[name])
	}
	return out
}
