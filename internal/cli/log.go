// Package cli implements the flowview command-line interface.
//
// This package provides commands for inspecting hierarchical flow datasets
// from the terminal, exploring them interactively, and serving them over
// HTTP. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - show: Print the visible nodes and links after a series of expand/collapse steps
//   - validate: Report every structural problem in a dataset
//   - explore: Expand and collapse nodes interactively
//   - serve: Serve expand/collapse sessions over HTTP
//   - convert: Re-encode a dataset between JSON, YAML and TOML
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Configuration
//
// Settings are read from $XDG_CONFIG_HOME/flowview/config.toml (or --config)
// and overridden by FLOWVIEW_* environment variables.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Loaded budget.json: 5 nodes, 6 links (1ms)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks reports visibility and store events as debug logs.
type logHooks struct {
	logger *log.Logger
}

func (h *logHooks) OnMutation(_ context.Context, op, nodeID string, applied bool) {
	h.logger.Debug("mutation", "op", op, "node", nodeID, "applied", applied)
}

func (h *logHooks) OnRecompute(_ context.Context, nodes, links int, d time.Duration) {
	h.logger.Debug("visible", "nodes", nodes, "links", links, "took", d.Round(time.Microsecond))
}

func (h *logHooks) OnStateLoad(_ context.Context, id string, found bool, err error) {
	if err != nil {
		h.logger.Warn("state load failed", "session", id, "err", err)
		return
	}
	h.logger.Debug("state load", "session", id, "found", found)
}

func (h *logHooks) OnStateSave(_ context.Context, id string, expanded int, err error) {
	if err != nil {
		h.logger.Warn("state save failed", "session", id, "err", err)
		return
	}
	h.logger.Debug("state save", "session", id, "expanded", expanded)
}
