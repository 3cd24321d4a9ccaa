// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about expand/collapse mutations, visibility
// recomputation, and session persistence.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetVisibilityHooks(&myVisibilityHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Callers emit events around the work they do:
//
//	start := time.Now()
//	m.Expand(id)
//	observability.Visibility().OnMutation(ctx, "expand", id, applied)
//	observability.Visibility().OnRecompute(ctx, nodes, links, time.Since(start))
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Visibility Hooks
// =============================================================================

// VisibilityHooks receives events from expand/collapse handling.
type VisibilityHooks interface {
	// OnMutation records an expand, collapse, toggle or reset request.
	// applied is false when the request was ignored (unknown node or a
	// node that cannot expand).
	OnMutation(ctx context.Context, op, nodeID string, applied bool)

	// OnRecompute records the size of the visible projections after a
	// mutation and how long the mutation took.
	OnRecompute(ctx context.Context, visibleNodes, visibleLinks int, duration time.Duration)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from session persistence.
type StoreHooks interface {
	// OnStateLoad records a session lookup. found is false on a miss.
	OnStateLoad(ctx context.Context, sessionID string, found bool, err error)

	// OnStateSave records a session write with the number of expanded nodes.
	OnStateSave(ctx context.Context, sessionID string, expanded int, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopVisibilityHooks is a no-op implementation of VisibilityHooks.
type NoopVisibilityHooks struct{}

func (NoopVisibilityHooks) OnMutation(context.Context, string, string, bool)     {}
func (NoopVisibilityHooks) OnRecompute(context.Context, int, int, time.Duration) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnStateLoad(context.Context, string, bool, error) {}
func (NoopStoreHooks) OnStateSave(context.Context, string, int, error)  {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	visibilityHooks VisibilityHooks = NoopVisibilityHooks{}
	storeHooks      StoreHooks      = NoopStoreHooks{}
	hooksMu         sync.RWMutex
)

// SetVisibilityHooks registers custom visibility hooks.
// This should be called once at application startup.
func SetVisibilityHooks(h VisibilityHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		visibilityHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Visibility returns the registered visibility hooks.
func Visibility() VisibilityHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return visibilityHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	visibilityHooks = NoopVisibilityHooks{}
	storeHooks = NoopStoreHooks{}
}
