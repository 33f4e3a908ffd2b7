package pixel

import (
	"image"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// DefaultTolerance is the largest per-channel difference Verify ignores.
const DefaultTolerance = 3

// DiffResult summarizes pixels that changed outside the allowed regions.
type DiffResult struct {
	Changed int
	First   image.Point // first changed pixel in row-major order
	Bounds  image.Rectangle
}

// Diff compares before and after, which must have equal bounds, and counts
// pixels outside every allowed rect whose R, G or B channel moved by more
// than tolerance.
func Diff(before, after *image.NRGBA, allowed []image.Rectangle, tolerance int) DiffResult {
	var res DiffResult
	b := before.Bounds().Intersect(after.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		bi := before.PixOffset(b.Min.X, y)
		ai := after.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, bi, ai = x+1, bi+4, ai+4 {
			if !changed(before.Pix[bi:bi+3], after.Pix[ai:ai+3], tolerance) {
				continue
			}
			pt := image.Pt(x, y)
			if inAny(pt, allowed) {
				continue
			}
			if res.Changed == 0 {
				res.First = pt
				res.Bounds = image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))}
			} else {
				res.Bounds = res.Bounds.Union(image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))})
			}
			res.Changed++
		}
	}
	return res
}

// Verify returns a ZONE_BLEED error when any pixel outside allowed changed.
func Verify(before, after *image.NRGBA, allowed []image.Rectangle, tolerance int) error {
	d := Diff(before, after, allowed, tolerance)
	if d.Changed == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeZoneBleed, "%d pixels changed outside zones, first at (%d,%d), within %v",
		d.Changed, d.First.X, d.First.Y, d.Bounds)
}

func changed(a, b []uint8, tolerance int) bool {
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d > tolerance || -d > tolerance {
			return true
		}
	}
	return false
}

func inAny(pt image.Point, rects []image.Rectangle) bool {
	for _, r := range rects {
		if pt.In(r) {
			return true
		}
	}
	return false
}
