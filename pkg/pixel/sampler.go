// Package pixel implements the in-place pixel operations applied to a
// guest's private copy of a template page: background sampling, zone
// masking, text compositing, edit verification and debug overlays.
//
// All functions take pixel rectangles produced by the raster package and
// never touch pixels outside the page bounds.
package pixel

import (
	"image"
	"image/color"
)

const (
	// RingThickness is the width in pixels of the band sampled around a rect.
	RingThickness = 6

	// minRingSamples is the smallest ring that still gives a usable median.
	minRingSamples = 10
)

// Sample estimates the background color around r by taking the per-channel
// median of a ring of RingThickness pixels just outside r. The top and bottom
// bands include the corners; the side bands span r's height only. The ring is
// clamped to the image. When fewer than minRingSamples pixels are available
// the four corner pixels of r are averaged instead. Sample never fails.
func Sample(img *image.NRGBA, r image.Rectangle) color.NRGBA {
	b := img.Bounds()
	const t = RingThickness

	bands := [4]image.Rectangle{
		image.Rect(r.Min.X-t, r.Min.Y-t, r.Max.X+t, r.Min.Y), // top
		image.Rect(r.Min.X-t, r.Max.Y, r.Max.X+t, r.Max.Y+t), // bottom
		image.Rect(r.Min.X-t, r.Min.Y, r.Min.X, r.Max.Y),     // left
		image.Rect(r.Max.X, r.Min.Y, r.Max.X+t, r.Max.Y),     // right
	}

	var h histogram
	for _, band := range bands {
		band = band.Intersect(b)
		for y := band.Min.Y; y < band.Max.Y; y++ {
			row := img.Pix[img.PixOffset(band.Min.X, y):]
			for x := 0; x < band.Dx(); x++ {
				h.add(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	}

	if h.n < minRingSamples {
		return cornerAverage(img, r)
	}
	return color.NRGBA{R: h.median(0), G: h.median(1), B: h.median(2), A: 0xff}
}

// histogram accumulates per-channel value counts.
type histogram struct {
	bins [3][256]int
	n    int
}

func (h *histogram) add(r, g, b uint8) {
	h.bins[0][r]++
	h.bins[1][g]++
	h.bins[2][b]++
	h.n++
}

// median returns the lower of the two middle values for an even count.
func (h *histogram) median(ch int) uint8 {
	target := (h.n - 1) / 2
	seen := 0
	for v, c := range h.bins[ch] {
		seen += c
		if seen > target {
			return uint8(v)
		}
	}
	return 255
}

// cornerAverage averages the pixels at the four corners of r, each clamped
// into the image.
func cornerAverage(img *image.NRGBA, r image.Rectangle) color.NRGBA {
	b := img.Bounds()
	if b.Empty() {
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	clampPt := func(x, y int) (int, int) {
		return clampInt(x, b.Min.X, b.Max.X-1), clampInt(y, b.Min.Y, b.Max.Y-1)
	}
	corners := [4][2]int{
		{r.Min.X, r.Min.Y},
		{r.Max.X - 1, r.Min.Y},
		{r.Min.X, r.Max.Y - 1},
		{r.Max.X - 1, r.Max.Y - 1},
	}
	var sum [3]int
	for _, c := range corners {
		x, y := clampPt(c[0], c[1])
		p := img.NRGBAAt(x, y)
		sum[0] += int(p.R)
		sum[1] += int(p.G)
		sum[2] += int(p.B)
	}
	return color.NRGBA{R: uint8(sum[0] / 4), G: uint8(sum[1] / 4), B: uint8(sum[2] / 4), A: 0xff}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
