// Package raster turns template documents into page images and defines the
// point/pixel coordinate contract shared by every pixel operation.
//
// # Coordinates
//
// Zone geometry is authored in PDF points with a top-left origin. A page
// rasterized at dpi has a scale of dpi/72 pixels per point:
//
//	px = round(pt * dpi / 72)
//	pt = px * 72 / dpi
//
// Every package converts through ToPixels and ToPoints so masking, text
// placement and page sizing agree to the pixel.
//
// # Backends
//
//   - Ghostscript: PDF templates, via the gs executable
//   - Images: PNG or JPEG templates (a file or a directory of pages)
//   - Static: pre-decoded images, used by tests and the render service
//   - Cached: decorates any backend with a cache.Cache
package raster

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/config"
)

// PointsPerInch is the PDF user-space unit.
const PointsPerInch = 72.0

// Rasterizer renders a document into one Page per document page.
type Rasterizer interface {
	// Name identifies the backend in cache keys and logs.
	Name() string

	// Render rasterizes doc at dpi. Pages are returned in document order.
	Render(ctx context.Context, doc string, dpi int) ([]*Page, error)
}

// Page is one rasterized template page. Image is always opaque and anchored
// at the origin.
type Page struct {
	Index int
	DPI   int
	Image *image.NRGBA
}

// NewPage converts img to an opaque NRGBA page. Transparent regions are
// flattened onto white.
func NewPage(index, dpi int, img image.Image) *Page {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	return &Page{Index: index, DPI: dpi, Image: flat}
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	return &Page{Index: p.Index, DPI: p.DPI, Image: imaging.Clone(p.Image)}
}

// Width returns the page width in pixels.
func (p *Page) Width() int { return p.Image.Bounds().Dx() }

// Height returns the page height in pixels.
func (p *Page) Height() int { return p.Image.Bounds().Dy() }

// Bounds returns the pixel bounds of the page.
func (p *Page) Bounds() image.Rectangle { return p.Image.Bounds() }

// SizePoints returns the page size in points.
func (p *Page) SizePoints() (w, h float64) {
	return ToPoints(p.Width(), p.DPI), ToPoints(p.Height(), p.DPI)
}

// Scale returns pixels per point at dpi.
func Scale(dpi int) float64 {
	return float64(dpi) / PointsPerInch
}

// ToPixels converts a length or coordinate in points to pixels.
func ToPixels(pt float64, dpi int) int {
	return int(math.Round(pt * Scale(dpi)))
}

// ToPoints converts pixels to points.
func ToPoints(px int, dpi int) float64 {
	return float64(px) * PointsPerInch / float64(dpi)
}

// ScaleRect converts r to pixels without clamping. Both corners are rounded
// independently, so adjacent zones never leave a gap.
func ScaleRect(r config.Rect, dpi int) image.Rectangle {
	return image.Rect(
		ToPixels(r.X, dpi),
		ToPixels(r.Y, dpi),
		ToPixels(r.X+r.Width, dpi),
		ToPixels(r.Y+r.Height, dpi),
	)
}

// PixelRect converts r to pixels and clamps it to bounds. The result may be
// empty when r lies outside the page.
func PixelRect(r config.Rect, dpi int, bounds image.Rectangle) image.Rectangle {
	return ScaleRect(r, dpi).Intersect(bounds)
}

// Grow expands r by n pixels on every side (shrinks for negative n). A rect
// shrunk past zero size collapses to an empty rect at its center.
func Grow(r image.Rectangle, n int) image.Rectangle {
	out := image.Rectangle{
		Min: image.Pt(r.Min.X-n, r.Min.Y-n),
		Max: image.Pt(r.Max.X+n, r.Max.Y+n),
	}
	if out.Min.X >= out.Max.X || out.Min.Y >= out.Max.Y {
		c := image.Pt((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
		return image.Rectangle{Min: c, Max: c}
	}
	return out
}
