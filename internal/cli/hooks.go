package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lanegraph/pkg/observability"
)

// debugHooks logs layout, fold, source, cache and HTTP events at debug level.
type debugHooks struct {
	logger *log.Logger
}

// installDebugHooks routes every observability event to l. It does nothing
// unless l logs at debug level.
func installDebugHooks(l *log.Logger) {
	if l.GetLevel() > log.DebugLevel {
		return
	}
	h := debugHooks{logger: l}
	observability.SetGraphHooks(h)
	observability.SetFragmentHooks(h)
	observability.SetSourceHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h debugHooks) OnAppendStart(_ context.Context, rows, commits int) {
	h.logger.Debug("append", "rows", rows, "commits", commits)
}

func (h debugHooks) OnAppendComplete(_ context.Context, commits, rows, pending int, d time.Duration) {
	h.logger.Debug("appended", "commits", commits, "rows", rows, "pending", pending, "took", d)
}

func (h debugHooks) OnToggle(_ context.Context, action string, removed, added int, d time.Duration) {
	h.logger.Debug("fold", "action", action, "removed", removed, "added", added, "took", d)
}

func (h debugHooks) OnToggleError(_ context.Context, action string, err error) {
	h.logger.Debug("fold rejected", "action", action, "err", err)
}

func (h debugHooks) OnLoad(_ context.Context, source string, commits int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("page failed", "source", source, "err", err)
		return
	}
	h.logger.Debug("page read", "source", source, "commits", commits, "took", d)
}

func (h debugHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h debugHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h debugHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h debugHooks) OnRequest(_ context.Context, method, path string) {
	h.logger.Debug("request", "method", method, "path", path)
}

func (h debugHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Debug("response", "method", method, "path", path, "status", status, "took", d)
}
