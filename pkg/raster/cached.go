package raster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/cache"
	"github.com/matzehuels/cardpress/pkg/observability"
)

// Cached stores the pages produced by Inner in a cache.Cache, keyed by the
// SHA-256 of the document bytes, the DPI and the backend name. Cache failures
// are logged and fall through to Inner.
type Cached struct {
	Inner  Rasterizer
	Cache  cache.Cache
	Keyer  cache.Keyer
	TTL    time.Duration
	Logger *log.Logger

	// Refresh skips the lookup but still stores the fresh result.
	Refresh bool

	lastHit bool
}

// NewCached wraps inner with c. A nil keyer uses cache.DefaultKeyer.
func NewCached(inner Rasterizer, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Cached {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cached{Inner: inner, Cache: c, Keyer: keyer, TTL: cache.TTLRaster, Logger: logger}
}

// Name implements Rasterizer.
func (c *Cached) Name() string { return c.Inner.Name() }

// LastHit reports whether the most recent Render was served from cache.
// Cached is used from a single goroutine during template setup.
func (c *Cached) LastHit() bool { return c.lastHit }

// Render implements Rasterizer.
func (c *Cached) Render(ctx context.Context, doc string, dpi int) ([]*Page, error) {
	c.lastHit = false
	data, err := os.ReadFile(doc)
	if err != nil {
		// let the backend report the load error in its own terms
		return c.Inner.Render(ctx, doc, dpi)
	}
	key := c.Keyer.RasterKey(cache.Hash(data), cache.RasterKeyOpts{DPI: dpi, Backend: c.backendName(doc)})

	if !c.Refresh {
		blob, hit, err := c.Cache.Get(ctx, key)
		switch {
		case err != nil:
			c.Logger.Warn("raster cache lookup failed", "err", err)
		case hit:
			pages, derr := DecodePages(blob)
			if derr == nil {
				observability.Cache().OnCacheHit(ctx, "raster")
				c.lastHit = true
				return pages, nil
			}
			c.Logger.Warn("discarding corrupt raster cache entry", "err", derr)
			_ = c.Cache.Delete(ctx, key)
		}
		observability.Cache().OnCacheMiss(ctx, "raster")
	}

	pages, err := c.Inner.Render(ctx, doc, dpi)
	if err != nil {
		return nil, err
	}

	blob, err := EncodePages(pages)
	if err != nil {
		c.Logger.Warn("encode raster cache entry", "err", err)
		return pages, nil
	}
	if err := c.Cache.Set(ctx, key, blob, c.TTL); err != nil {
		c.Logger.Warn("raster cache store failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "raster", len(blob))
	}
	return pages, nil
}

func (c *Cached) backendName(doc string) string {
	if a, ok := c.Inner.(Auto); ok {
		return a.Backend(doc).Name()
	}
	return c.Inner.Name()
}

// pageBlob is the serialized form of a rasterized template.
type pageBlob struct {
	DPI   int      `json:"dpi"`
	Pages [][]byte `json:"pages"`
}

// EncodePages serializes pages as PNG images in a JSON envelope.
func EncodePages(pages []*Page) ([]byte, error) {
	blob := pageBlob{Pages: make([][]byte, len(pages))}
	for i, p := range pages {
		blob.DPI = p.DPI
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, p.Image, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		blob.Pages[i] = buf.Bytes()
	}
	return json.Marshal(blob)
}

// DecodePages reverses EncodePages.
func DecodePages(data []byte) ([]*Page, error) {
	var blob pageBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrCorrupt, err)
	}
	if len(blob.Pages) == 0 {
		return nil, cache.ErrCorrupt
	}
	pages := make([]*Page, len(blob.Pages))
	for i, b := range blob.Pages {
		img, err := imaging.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", cache.ErrCorrupt, i+1, err)
		}
		pages[i] = NewPage(i, blob.DPI, img)
	}
	return pages, nil
}

var _ Rasterizer = (*Cached)(nil)
