// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about graph building, fragment toggles, commit loading,
// detail caching, and HTTP requests served by the session API.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so the layout packages
// stay free of any metrics backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetGraphHooks(&myGraphHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Graph().OnAppendStart(ctx, rows, len(commits))
//	// ... extend the graph ...
//	observability.Graph().OnAppendComplete(ctx, len(commits), rows, pending, duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Graph Hooks
// =============================================================================

// GraphHooks receives events from the graph builder.
type GraphHooks interface {
	// OnAppendStart is called before a page of commits is laid out.
	OnAppendStart(ctx context.Context, rows, commits int)

	// OnAppendComplete is called after the page is laid out. pending is the
	// number of parent references still awaiting their commit.
	OnAppendComplete(ctx context.Context, commits, rows, pending int, duration time.Duration)
}

// =============================================================================
// Fragment Hooks
// =============================================================================

// FragmentHooks receives events from fragment collapse and expand.
type FragmentHooks interface {
	// OnToggle records one collapse or expand. action is "hide", "show",
	// "hide-all" or "show-all"; removed and added are the row counts of the
	// resulting replace.
	OnToggle(ctx context.Context, action string, removed, added int, duration time.Duration)

	// OnToggleError records a rejected toggle.
	OnToggleError(ctx context.Context, action string, err error)
}

// =============================================================================
// Source Hooks
// =============================================================================

// SourceHooks receives events from commit sources.
type SourceHooks interface {
	// OnLoad records one page read from a commit source.
	OnLoad(ctx context.Context, source string, commits int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGraphHooks is a no-op implementation of GraphHooks.
type NoopGraphHooks struct{}

func (NoopGraphHooks) OnAppendStart(context.Context, int, int)                     {}
func (NoopGraphHooks) OnAppendComplete(context.Context, int, int, int, time.Duration) {}

// NoopFragmentHooks is a no-op implementation of FragmentHooks.
type NoopFragmentHooks struct{}

func (NoopFragmentHooks) OnToggle(context.Context, string, int, int, time.Duration) {}
func (NoopFragmentHooks) OnToggleError(context.Context, string, error)           {}

// NoopSourceHooks is a no-op implementation of SourceHooks.
type NoopSourceHooks struct{}

func (NoopSourceHooks) OnLoad(context.Context, string, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                       {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	graphHooks    GraphHooks    = NoopGraphHooks{}
	fragmentHooks FragmentHooks = NoopFragmentHooks{}
	sourceHooks   SourceHooks   = NoopSourceHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetGraphHooks registers custom graph hooks.
// This should be called once at application startup before any graph is built.
func SetGraphHooks(h GraphHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		graphHooks = h
	}
}

// SetFragmentHooks registers custom fragment hooks.
func SetFragmentHooks(h FragmentHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		fragmentHooks = h
	}
}

// SetSourceHooks registers custom source hooks.
func SetSourceHooks(h SourceHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sourceHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Graph returns the registered graph hooks.
func Graph() GraphHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return graphHooks
}

// Fragment returns the registered fragment hooks.
func Fragment() FragmentHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return fragmentHooks
}

// Source returns the registered source hooks.
func Source() SourceHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sourceHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	graphHooks = NoopGraphHooks{}
	fragmentHooks = NoopFragmentHooks{}
	sourceHooks = NoopSourceHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
