// Package cache stores expensive intermediate results between runs.
//
// The main consumer is the template raster cache: rasterizing a multi-page
// template at print resolution takes seconds, while the result only depends
// on the document bytes and the DPI. Backends:
//   - NullCache: caching disabled
//   - FileCache: local directory, used by the CLI
//   - RedisCache: shared between workers and the render service
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default time-to-live values per entry kind.
const (
	TTLRaster   = 7 * 24 * time.Hour
	TTLDocument = 24 * time.Hour
)
