// Package document reassembles edited page rasters into PDF files.
//
// Every builder produces one PDF page per raster, sized so that the image
// covers the page exactly: width_pt = width_px * 72 / dpi, and likewise for
// the height. Builders never resample.
//
// Builders:
//   - ImageStream: a small direct writer, one image XObject per page
//   - FPDF: pages laid out with go-pdf/fpdf
//   - Chain: tries builders in order until one succeeds
package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/raster"
)

// Builder encodes pages into a PDF document.
type Builder interface {
	Name() string
	Build(pages []*raster.Page) ([]byte, error)
}

// Chain tries each builder in order and returns the first success.
type Chain struct {
	Builders []Builder
	Logger   *log.Logger
}

// NewChain creates a chain over builders.
func NewChain(logger *log.Logger, builders ...Builder) *Chain {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Chain{Builders: builders, Logger: logger}
}

// Name implements Builder.
func (c *Chain) Name() string {
	names := make([]string, len(c.Builders))
	for i, b := range c.Builders {
		names[i] = b.Name()
	}
	return strings.Join(names, ",")
}

// Build implements Builder. When every builder fails the error is ENCODING
// and wraps the last failure.
func (c *Chain) Build(pages []*raster.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrCodeEncoding, "no pages to encode")
	}
	var last error
	for _, b := range c.Builders {
		data, err := b.Build(pages)
		if err == nil {
			return data, nil
		}
		c.Logger.Warn("pdf builder failed", "builder", b.Name(), "err", err)
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no builders configured")
	}
	return nil, errors.Wrap(errors.ErrCodeEncoding, last, "encode %d pages", len(pages))
}

// ByName returns the builder for a configuration name: "stream",
// "stream-flate" or "fpdf".
func ByName(name string) (Builder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stream", "imagestream", "jpeg":
		return NewImageStream(), nil
	case "stream-flate", "flate":
		return &ImageStream{Format: Flate}, nil
	case "fpdf":
		return NewFPDF(), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown pdf builder %q", name)
}

// Default returns the default chain: the direct writer, then fpdf.
func Default(logger *log.Logger) *Chain {
	return NewChain(logger, NewImageStream(), NewFPDF())
}

// pageSize returns the page size in points.
func pageSize(p *raster.Page) (w, h float64, err error) {
	if p == nil || p.Image == nil || p.Width() == 0 || p.Height() == 0 {
		return 0, 0, fmt.Errorf("empty page")
	}
	if p.DPI <= 0 {
		return 0, 0, fmt.Errorf("page %d: invalid dpi %d", p.Index+1, p.DPI)
	}
	w, h = p.SizePoints()
	return w, h, nil
}

var _ Builder = (*Chain)(nil)
