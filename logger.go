package ribbon

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/ribbon/tile"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for ribbon and all its sub-packages.
// By default, ribbon produces no log output. Pass nil to restore the
// default silent behavior.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
//
// Log levels used by ribbon:
//   - [slog.LevelDebug]: per-build diagnostics (segment counts, material churn)
//   - [slog.LevelInfo]: lifecycle events (tile set loaded, GPU device adopted)
//   - [slog.LevelWarn]: recovered issues (skipped degenerate path, disposal
//     of an already-disposed resource)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	// Propagate to sub-packages that keep their own logger to avoid
	// import cycles with this package.
	tile.SetLogger(l)
}

// Logger returns the current logger used by ribbon. Sub-packages (tile/,
// internal/gpu/) call this to share the same logger configuration without
// introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
