// Package logger defines the logging contract used by the core packages. The
// zerolog backed implementation lives in infra/logger.
package logger

// Logger exposes printf style methods for common severity levels and
// structured variants for events worth querying later.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// Debugw and Warnw log msg with structured fields.
	Debugw(msg string, fields map[string]any)
	Warnw(msg string, fields map[string]any)
}

// Nop discards everything. It is the fallback when a nil Logger is injected.
type Nop struct{}

func (Nop) Debugf(string, ...any)         {}
func (Nop) Infof(string, ...any)          {}
func (Nop) Warnf(string, ...any)          {}
func (Nop) Errorf(string, ...any)         {}
func (Nop) Debugw(string, map[string]any) {}
func (Nop) Warnw(string, map[string]any)  {}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}
