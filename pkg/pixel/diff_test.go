package pixel

import (
	"image"
	"image/color"
	"testing"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
)

func TestDiff(t *testing.T) {
	before := solid(20, 20, white)
	allowed := []image.Rectangle{image.Rect(5, 5, 10, 10)}

	tests := []struct {
		name    string
		edit    func(img *image.NRGBA)
		changed int
	}{
		{"untouched", func(*image.NRGBA) {}, 0},
		{"inside zone", func(img *image.NRGBA) { img.SetNRGBA(6, 6, black) }, 0},
		{"within tolerance", func(img *image.NRGBA) { img.SetNRGBA(0, 0, color.NRGBA{252, 255, 254, 255}) }, 0},
		{"outside zone", func(img *image.NRGBA) {
			img.SetNRGBA(0, 0, black)
			img.SetNRGBA(15, 12, color.NRGBA{251, 255, 255, 255})
		}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := imageCopy(before)
			tt.edit(after)
			d := Diff(before, after, allowed, DefaultTolerance)
			if d.Changed != tt.changed {
				t.Errorf("Changed = %d, want %d", d.Changed, tt.changed)
			}
			err := Verify(before, after, allowed, DefaultTolerance)
			if (err != nil) != (tt.changed > 0) {
				t.Errorf("Verify = %v", err)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeZoneBleed) {
				t.Errorf("Verify = %v, want ZONE_BLEED", err)
			}
		})
	}
}

func TestDiffBounds(t *testing.T) {
	before := solid(20, 20, white)
	after := imageCopy(before)
	after.SetNRGBA(3, 2, black)
	after.SetNRGBA(1, 7, black)

	d := Diff(before, after, nil, 0)
	if d.First != image.Pt(3, 2) {
		t.Errorf("First = %v", d.First)
	}
	if d.Bounds != image.Rect(1, 2, 4, 8) {
		t.Errorf("Bounds = %v", d.Bounds)
	}
}

func TestDrawZones(t *testing.T) {
	p := testPage(white)
	z := testZone(config.MaskSolid)
	other := testZone(config.MaskSolid)
	other.ZoneID = "second_page"
	other.PageNumber = 2
	other.Rect = config.Rect{X: 40, Y: 40, Width: 5, Height: 5}

	out := DrawZones(p, []config.Zone{z, other})

	if got := out.NRGBAAt(10, 10); got != ZoneColor {
		t.Errorf("zone corner = %v, want %v", got, ZoneColor)
	}
	if got := out.NRGBAAt(12, 12); got != InnerColor {
		t.Errorf("inner corner = %v, want %v", got, InnerColor)
	}
	if got := out.NRGBAAt(20, 20); got != white {
		t.Errorf("zone center = %v, want unfilled", got)
	}
	if got := out.NRGBAAt(40, 40); got != white {
		t.Errorf("zone from another page drawn: %v", got)
	}
	if p.Image.NRGBAAt(10, 10) != white {
		t.Error("DrawZones modified the page")
	}
}
