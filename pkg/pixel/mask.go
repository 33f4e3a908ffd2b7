package pixel

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/raster"
)

// PaddedRect returns the zone rect in pixels grown by the mask padding and
// clamped to bounds. It is the largest region any zone operation may touch.
func PaddedRect(z config.Zone, dpi int, bounds image.Rectangle) image.Rectangle {
	raw := raster.ScaleRect(z.Rect, dpi)
	pad := raster.ToPixels(z.Mask.Padding, dpi)
	return raster.Grow(raw, pad).Intersect(bounds)
}

// MaskColor returns the color a zone's mask would paint over page, and false
// when the mask is disabled or has nothing to paint.
func MaskColor(page *raster.Page, z config.Zone) (color.NRGBA, bool) {
	if !z.Mask.Active() {
		return color.NRGBA{}, false
	}
	rect := PaddedRect(z, page.DPI, page.Bounds())
	if rect.Empty() {
		return color.NRGBA{}, false
	}
	if z.Mask.Mode == config.MaskSolid {
		if c, ok := z.Mask.FillColor(); ok {
			return c, true
		}
	}
	return Sample(page.Image, rect), true
}

// Mask erases the zone's original content on page, which the caller owns,
// and returns the painted rect. With mode none or a disabled mask the page is
// left untouched and the returned rect is empty.
func Mask(page *raster.Page, z config.Zone) image.Rectangle {
	fill, ok := MaskColor(page, z)
	if !ok {
		return image.Rectangle{}
	}
	rect := PaddedRect(z, page.DPI, page.Bounds())
	Fill(page.Image, rect, fill)
	return rect
}

// Fill paints r with an opaque color.
func Fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	c.A = 0xff
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}
