package pixel

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/raster"
)

// Overlay colors.
var (
	ZoneColor  = color.NRGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}
	InnerColor = color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
)

// DrawZones returns a copy of page with an unfilled outline around each
// zone on it (ZoneColor) and around the zone's inner text area (InnerColor).
// Zones for other pages are ignored.
func DrawZones(page *raster.Page, zones []config.Zone) *image.NRGBA {
	out := imaging.Clone(page.Image)
	stroke := max(1, page.DPI/100)
	for _, z := range zones {
		if z.PageIndex() != page.Index {
			continue
		}
		strokeRect(out, raster.ScaleRect(z.Rect, page.DPI), stroke, ZoneColor)
		strokeRect(out, InnerRect(z, page.DPI), stroke, InnerColor)
	}
	return out
}

func strokeRect(img *image.NRGBA, r image.Rectangle, w int, c color.NRGBA) {
	if r.Empty() {
		return
	}
	w = min(w, r.Dx()/2+1, r.Dy()/2+1)
	Fill(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), c)
	Fill(img, image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), c)
	Fill(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), c)
	Fill(img, image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), c)
}
