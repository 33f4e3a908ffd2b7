// Package pipeline personalizes a template for a batch of guests.
//
// A Processor is built once per job: it rasterizes the template, binds the
// zone configuration to the rasterized pages and keeps the result as an
// immutable Template. Each guest is then processed independently:
//
//  1. Resolve: pick the text of every zone from the guest's fields
//  2. Edit: on private copies of the touched pages, mask each zone and
//     composite its text, in config order
//  3. Build: encode the pages into one PDF
//
// Run drives many guests through a bounded worker pool and collects a
// report.Report keyed by guest ordinal.
//
// # Usage
//
//	proc, err := pipeline.NewProcessor(ctx, cfg, pipeline.Options{Logger: logger})
//	if err != nil {
//	    return err // template-level failure, no guest was processed
//	}
//	rep, err := proc.Run(ctx, guests, mapping, writer)
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cardpress/pkg/cache"
	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/document"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/fonts"
	"github.com/matzehuels/cardpress/pkg/observability"
	"github.com/matzehuels/cardpress/pkg/pixel"
	"github.com/matzehuels/cardpress/pkg/raster"
	"github.com/matzehuels/cardpress/pkg/text"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultDPI is the rasterization resolution for output documents.
	DefaultDPI = 300

	// PreviewDPI is the resolution used for previews and zone overlays.
	PreviewDPI = 150

	// MaxDPI bounds memory use: a Letter page at 1200 dpi is ~60 MB.
	MaxDPI = 1200
)

// RendererPolicy decides what happens when shaping is unavailable for a zone.
type RendererPolicy string

const (
	// PolicyDegrade draws the zone unshaped and logs a warning.
	PolicyDegrade RendererPolicy = "degrade"
	// PolicyFail fails the guest with RENDERER_UNAVAILABLE.
	PolicyFail RendererPolicy = "fail"
)

// =============================================================================
// Options
// =============================================================================

// Options configures a Processor. Zero values are replaced by defaults.
type Options struct {
	DPI     int
	Workers int

	Policy RendererPolicy

	// Strict verifies after editing that no pixel outside the padded zone
	// rects changed by more than Tolerance; violations fail the guest with
	// ZONE_BLEED.
	Strict    bool
	Tolerance int

	// RejectOverlaps turns overlapping zones into a config error instead of
	// a warning.
	RejectOverlaps bool

	Rasterizer raster.Rasterizer
	Fonts      *fonts.Registry
	Shaper     text.Shaper
	Builder    document.Builder

	// DocumentCache stores finished documents keyed by template, config and
	// the guest's resolved zone texts.
	DocumentCache cache.Cache
	Keyer         cache.Keyer

	Logger *log.Logger
}

// ValidateAndSetDefaults checks options and fills defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.DPI == 0 {
		o.DPI = DefaultDPI
	}
	if o.DPI < 1 || o.DPI > MaxDPI {
		return errors.New(errors.ErrCodeInvalidInput, "dpi must be between 1 and %d, got %d", MaxDPI, o.DPI)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	switch o.Policy {
	case "":
		o.Policy = PolicyDegrade
	case PolicyDegrade, PolicyFail:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "renderer policy must be %q or %q, got %q", PolicyDegrade, PolicyFail, o.Policy)
	}
	if o.Tolerance <= 0 {
		o.Tolerance = pixel.DefaultTolerance
	}
	if o.Rasterizer == nil {
		o.Rasterizer = raster.Auto{PDF: raster.NewGhostscript(o.Logger), Images: raster.Images{}}
	}
	if o.Fonts == nil {
		o.Fonts = fonts.NewRegistry(o.Logger)
	}
	if o.Shaper == nil {
		o.Shaper = text.Select(o.Fonts, o.Logger, o.Policy == PolicyFail)
	}
	if o.Builder == nil {
		o.Builder = document.Default(o.Logger)
	}
	if o.DocumentCache == nil {
		o.DocumentCache = cache.NewNullCache()
	}
	if o.Keyer == nil {
		o.Keyer = cache.NewDefaultKeyer()
	}
	return nil
}

// =============================================================================
// Template & Processor
// =============================================================================

// Template is a rasterized template bound to its config. It is never
// modified after NewProcessor returns.
type Template struct {
	Config *config.Config
	DPI    int
	Pages  []*raster.Page
	Hash   string // SHA-256 of the template document
	Cached bool   // pages came from the raster cache

	configHash string
}

// Processor personalizes one template. It is safe for concurrent use.
type Processor struct {
	tmpl       *Template
	opts       Options
	compositor *pixel.Compositor
}

// Output is one personalized document.
type Output struct {
	Index      int
	Name       string
	Data       []byte
	Placements []pixel.Placement
	Renderer   string // renderers used, in zone order, comma separated
	Cached     bool
}

// NewProcessor validates cfg, rasterizes its template once and returns a
// processor bound to the result. Every error here is template-level.
func NewProcessor(ctx context.Context, cfg *config.Config, opts Options) (*Processor, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := checkConfig(cfg, opts); err != nil {
		return nil, err
	}

	start := time.Now()
	pages, err := opts.Rasterizer.Render(ctx, cfg.BasePDFPath, opts.DPI)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeDocumentLoad, err, "rasterize %s", cfg.BasePDFPath)
		}
		return nil, err
	}
	cached := false
	if c, ok := opts.Rasterizer.(*raster.Cached); ok {
		cached = c.LastHit()
	}

	hash := ""
	if data, err := os.ReadFile(cfg.BasePDFPath); err == nil {
		hash = cache.Hash(data)
	}
	p, err := bind(cfg, pages, hash, opts)
	if err != nil {
		return nil, err
	}
	p.tmpl.Cached = cached

	dur := time.Since(start)
	opts.Logger.Info("template ready",
		"template", cfg.TemplateID,
		"pages", len(pages),
		"dpi", opts.DPI,
		"renderer", opts.Shaper.Name(),
		"cached", cached,
		"duration", dur)
	observability.Batch().OnTemplateReady(ctx, cfg.TemplateID, len(pages), dur, cached)
	return p, nil
}

// FromPages returns a processor over already rasterized pages. The pages
// must not be modified afterwards.
func FromPages(cfg *config.Config, pages []*raster.Page, opts Options) (*Processor, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := checkConfig(cfg, opts); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentLoad, "template has no pages")
	}
	h := make([]byte, 0, 64*len(pages))
	for _, p := range pages {
		h = append(h, cache.Hash(p.Image.Pix)...)
	}
	return bind(cfg, pages, cache.Hash(h), opts)
}

func checkConfig(cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, o := range cfg.Overlaps() {
		if opts.RejectOverlaps {
			return errors.New(errors.ErrCodeInvalidConfig, "zones %q and %q overlap on page %d", o.A, o.B, o.Page)
		}
		opts.Logger.Warn("zones overlap, the later zone wins", "page", o.Page, "first", o.A, "second", o.B)
	}
	return nil
}

func bind(cfg *config.Config, pages []*raster.Page, hash string, opts Options) (*Processor, error) {
	if err := cfg.CheckPages(len(pages)); err != nil {
		return nil, err
	}
	for _, p := range pages {
		if p.DPI != opts.DPI {
			return nil, errors.New(errors.ErrCodePageRender, "page %d rendered at %d dpi, want %d", p.Index+1, p.DPI, opts.DPI)
		}
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "hash config")
	}

	var fallback text.Shaper
	if opts.Policy == PolicyDegrade && opts.Shaper.Name() != "simple" {
		fallback = text.NewSimpleRenderer(opts.Fonts)
	}
	return &Processor{
		tmpl: &Template{
			Config:     cfg,
			DPI:        opts.DPI,
			Pages:      pages,
			Hash:       hash,
			configHash: cache.Hash(cfgJSON),
		},
		opts:       opts,
		compositor: pixel.NewCompositor(opts.Shaper, fallback, opts.Logger),
	}, nil
}

// Template returns the bound template. Callers must not modify it.
func (p *Processor) Template() *Template { return p.tmpl }

// Options returns the effective options.
func (p *Processor) Options() Options { return p.opts }

// =============================================================================
// Per-guest processing
// =============================================================================

// ResolveTexts returns the text for every zone: the value of the first
// mapped field in sorted order, or "" when no field maps to the zone or the
// guest lacks it.
func (p *Processor) ResolveTexts(g Guest, m Mapping) map[string]string {
	out := make(map[string]string, len(p.tmpl.Config.Zones))
	for _, z := range p.tmpl.Config.Zones {
		if f, ok := m.FieldFor(z.ZoneID); ok {
			out[z.ZoneID] = g.Value(f)
		} else {
			out[z.ZoneID] = ""
		}
	}
	return out
}

// Edit is the personalized page set of one guest. Pages without zones are
// shared with the template and must not be modified.
type Edit struct {
	Pages      []*raster.Page
	Placements []pixel.Placement
	Renderer   string // renderers used, in zone order, comma separated

	edited map[int]bool
}

// Personalize masks every zone and composites the guest's text, in config
// order. The template pages are never modified; pages with zones are cloned
// first and untouched pages are shared.
func (p *Processor) Personalize(index int, g Guest, m Mapping) (*Edit, error) {
	return p.personalize(index, p.ResolveTexts(g, m))
}

func (p *Processor) personalize(index int, texts map[string]string) (*Edit, error) {
	e := &Edit{
		Pages:  make([]*raster.Page, len(p.tmpl.Pages)),
		edited: make(map[int]bool),
	}
	copy(e.Pages, p.tmpl.Pages)

	for _, z := range p.tmpl.Config.Zones {
		i := z.PageIndex()
		if !e.edited[i] {
			e.Pages[i] = e.Pages[i].Clone()
			e.edited[i] = true
		}
		pixel.Mask(e.Pages[i], z)
		pl, err := p.compositor.Composite(e.Pages[i], z, texts[z.ZoneID])
		if err != nil {
			return nil, err
		}
		e.Placements = append(e.Placements, pl)
		if pl.Renderer != "" && !strings.Contains(e.Renderer, pl.Renderer) {
			if e.Renderer != "" {
				e.Renderer += ","
			}
			e.Renderer += pl.Renderer
		}
		if pl.Overflow {
			p.opts.Logger.Warn("text clipped at minimum size", "guest", index+1, "zone", z.ZoneID, "size_px", pl.SizePx)
		}
	}

	if p.opts.Strict {
		if err := p.verify(e.Pages, e.edited); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ProcessGuest personalizes the template for one guest and builds its
// document. Any error fails this guest only.
func (p *Processor) ProcessGuest(ctx context.Context, index int, name string, g Guest, m Mapping) (*Output, error) {
	texts := p.ResolveTexts(g, m)
	out := &Output{Index: index, Name: name}

	key := p.documentKey(texts)
	if data, hit, err := p.opts.DocumentCache.Get(ctx, key); err == nil && hit {
		observability.Cache().OnCacheHit(ctx, "document")
		out.Data, out.Cached = data, true
		return out, nil
	}
	observability.Cache().OnCacheMiss(ctx, "document")

	e, err := p.personalize(index, texts)
	if err != nil {
		return nil, err
	}
	out.Placements, out.Renderer = e.Placements, e.Renderer

	data, err := p.opts.Builder.Build(e.Pages)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeEncoding, err, "build %s", name)
		}
		return nil, err
	}
	out.Data = data

	if err := p.opts.DocumentCache.Set(ctx, key, data, cache.TTLDocument); err != nil {
		p.opts.Logger.Debug("document cache store failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "document", len(data))
	}
	return out, nil
}

// verify checks edited pages against the template.
func (p *Processor) verify(pages []*raster.Page, edited map[int]bool) error {
	for i := range edited {
		tp := p.tmpl.Pages[i]
		var allowed []image.Rectangle
		for _, z := range p.tmpl.Config.Zones {
			if z.PageIndex() == i {
				allowed = append(allowed, pixel.PaddedRect(z, tp.DPI, tp.Bounds()))
			}
		}
		if err := pixel.Verify(tp.Image, pages[i].Image, allowed, p.opts.Tolerance); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Processor) documentKey(texts map[string]string) string {
	data, _ := json.Marshal(texts)
	return p.opts.Keyer.DocumentKey(p.tmpl.Hash, cache.DocumentKeyOpts{
		ConfigHash: p.tmpl.configHash,
		GuestHash:  cache.Hash(data),
		DPI:        p.tmpl.DPI,
		Builder:    p.opts.Builder.Name(),
	})
}
