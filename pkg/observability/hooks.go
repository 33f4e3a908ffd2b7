// Package observability provides hooks for metrics, tracing, and progress
// reporting.
//
// Libraries emit events through package-level registries; the application
// decides at startup what listens. The CLI progress view and the HTTP
// service's request logging are both implemented as hooks, and any metrics
// backend can be attached the same way without the core packages importing
// it.
//
// # Usage
//
// Register hooks at application startup:
//
//	observability.SetBatchHooks(progressHooks)
//	defer observability.Reset()
//
// Libraries call hooks to emit events:
//
//	observability.Batch().OnGuestStart(ctx, index)
//	// ... personalize ...
//	observability.Batch().OnGuestComplete(ctx, index, name, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Batch Hooks
// =============================================================================

// BatchHooks receives events from the batch orchestrator.
type BatchHooks interface {
	// OnTemplateReady fires once the template is rasterized and bound.
	OnTemplateReady(ctx context.Context, templateID string, pages int, duration time.Duration, cached bool)

	// OnBatchStart fires before the first guest is scheduled.
	OnBatchStart(ctx context.Context, runID string, guests int)

	// OnGuestStart fires when a worker picks up a guest.
	OnGuestStart(ctx context.Context, index int)

	// OnGuestComplete fires when a guest finished, successfully or not.
	OnGuestComplete(ctx context.Context, index int, name string, duration time.Duration, err error)

	// OnBatchComplete fires after every scheduled guest has finished.
	OnBatchComplete(ctx context.Context, runID string, succeeded, failed int, duration time.Duration)
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

// HTTPHooks receives events from the render service.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records the response sent for a request.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopBatchHooks is a no-op implementation of BatchHooks.
type NoopBatchHooks struct{}

func (NoopBatchHooks) OnTemplateReady(context.Context, string, int, time.Duration, bool)  {}
func (NoopBatchHooks) OnBatchStart(context.Context, string, int)                          {}
func (NoopBatchHooks) OnGuestStart(context.Context, int)                                  {}
func (NoopBatchHooks) OnGuestComplete(context.Context, int, string, time.Duration, error) {}
func (NoopBatchHooks) OnBatchComplete(context.Context, string, int, int, time.Duration)   {}

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
	batchHooks BatchHooks = NoopBatchHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetBatchHooks registers custom batch hooks.
func SetBatchHooks(h BatchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		batchHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
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

// Batch returns the registered batch hooks.
func Batch() BatchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return batchHooks
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
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	batchHooks = NoopBatchHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
