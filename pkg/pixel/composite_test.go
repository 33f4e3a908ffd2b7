package pixel

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/fonts"
	"github.com/matzehuels/cardpress/pkg/raster"
	"github.com/matzehuels/cardpress/pkg/text"
)

// boxShaper draws every line as a solid block half an em wide per rune and
// one em tall, inside a 2 pixel margin.
type boxShaper struct{}

func (boxShaper) Name() string { return "box" }

func (boxShaper) Shape(req text.Request) (*text.Result, error) {
	size := int(req.SizePx)
	w := size * utf8.RuneCountInString(strings.TrimSpace(req.Text)) / 2
	m := image.NewAlpha(image.Rect(0, 0, w+4, size+4))
	ink := image.Rect(2, 2, 2+w, 2+size)
	draw.Draw(m, ink, image.Opaque, image.Point{}, draw.Src)
	return &text.Result{Mask: m, Ink: ink, Color: req.Color, Renderer: "box"}, nil
}

type unavailableShaper struct{}

func (unavailableShaper) Name() string { return "broken" }

func (unavailableShaper) Shape(text.Request) (*text.Result, error) {
	return nil, fmt.Errorf("%w: no shaping engine", text.ErrUnavailable)
}

func textZone(w, h float64) config.Zone {
	z := config.DefaultZone()
	z.ZoneID = "guest_name"
	z.Rect = config.Rect{X: 0, Y: 0, Width: w, Height: h}
	z.Text.FontFamily = "Go"
	z.Text.FontSize = 20
	return z
}

func TestSizeRange(t *testing.T) {
	tests := []struct {
		size        float64
		dpi         int
		base, floor int
	}{
		{12, 300, 50, 33},
		{20, 72, 20, 8},
		{6, 72, 6, 6},
		{0.1, 72, 1, 1},
	}
	for _, tt := range tests {
		base, floor := SizeRange(tt.size, tt.dpi)
		if base != tt.base || floor != tt.floor {
			t.Errorf("SizeRange(%v, %d) = %d, %d; want %d, %d", tt.size, tt.dpi, base, floor, tt.base, tt.floor)
		}
	}
}

func TestCompositeFits(t *testing.T) {
	tests := []struct {
		name     string
		width    float64
		size     int
		overflow bool
	}{
		{"roomy", 100, 20, false},
		{"shrinks", 34, 15, false},
		{"floor", 14, 8, true},
	}
	c := NewCompositor(boxShaper{}, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := raster.NewPage(0, 72, solid(120, 60, white))
			pl, err := c.Composite(p, textZone(tt.width, 40), "abcd")
			if err != nil {
				t.Fatalf("Composite: %v", err)
			}
			if pl.SizePx != tt.size || pl.Overflow != tt.overflow {
				t.Errorf("placement = %+v, want size %d overflow %v", pl, tt.size, tt.overflow)
			}
		})
	}
}

func TestCompositeShrinkIsMonotonic(t *testing.T) {
	c := NewCompositor(text.NewSimpleRenderer(testFonts()), nil, nil)
	prev := 1 << 30
	for w := 300.0; w >= 20; w -= 20 {
		p := raster.NewPage(0, 72, solid(320, 60, white))
		z := textZone(w, 50)
		z.Text.FontSize = 36
		pl, err := c.Composite(p, z, "Priya Shah")
		if err != nil {
			t.Fatal(err)
		}
		if pl.SizePx > prev {
			t.Fatalf("width %v: size %d grew from %d", w, pl.SizePx, prev)
		}
		if !pl.Overflow && pl.Ink.Dx() > int(w)-4 {
			t.Errorf("width %v: ink %v wider than inner area", w, pl.Ink)
		}
		prev = pl.SizePx
	}
}

func TestCompositeGravity(t *testing.T) {
	tests := []struct {
		align  config.Align
		valign config.VAlign
		want   image.Rectangle
	}{
		// inner is (2,2)-(98,38), the ink block is 40x20
		{config.AlignCenter, config.VAlignMiddle, image.Rect(30, 10, 70, 30)},
		{config.AlignLeft, config.VAlignTop, image.Rect(2, 2, 42, 22)},
		{config.AlignRight, config.VAlignBottom, image.Rect(58, 18, 98, 38)},
	}
	c := NewCompositor(boxShaper{}, nil, nil)
	for _, tt := range tests {
		p := raster.NewPage(0, 72, solid(120, 60, white))
		z := textZone(100, 40)
		z.Text.Align, z.Text.VAlign = tt.align, tt.valign
		pl, err := c.Composite(p, z, "abcd")
		if err != nil {
			t.Fatal(err)
		}
		if pl.Ink != tt.want {
			t.Errorf("%s/%s: ink = %v, want %v", tt.align, tt.valign, pl.Ink, tt.want)
		}
		if got := p.Image.NRGBAAt(tt.want.Min.X, tt.want.Min.Y); got != black {
			t.Errorf("%s/%s: ink corner = %v, want black", tt.align, tt.valign, got)
		}
		if got := p.Image.NRGBAAt(tt.want.Min.X-1, tt.want.Min.Y); got != white {
			t.Errorf("%s/%s: pixel left of ink = %v, want white", tt.align, tt.valign, got)
		}
	}
}

func TestCompositeGravityRealFont(t *testing.T) {
	const fontSize = 36
	base, _ := SizeRange(fontSize, 72)
	tests := []struct {
		name    string
		width   float64
		value   string
		shrinks bool
	}{
		{"base size", 300, "Asha", false},
		{"shrunk", 120, "Priya Shah Desai", true},
	}
	gravities := []struct {
		align  config.Align
		valign config.VAlign
	}{
		{config.AlignCenter, config.VAlignMiddle},
		{config.AlignLeft, config.VAlignTop},
		{config.AlignRight, config.VAlignBottom},
	}
	c := NewCompositor(text.NewSimpleRenderer(testFonts()), nil, nil)
	for _, tt := range tests {
		for _, g := range gravities {
			t.Run(fmt.Sprintf("%s/%s/%s", tt.name, g.align, g.valign), func(t *testing.T) {
				p := raster.NewPage(0, 72, solid(320, 80, white))
				before := imageCopy(p.Image)
				z := textZone(tt.width, 60)
				z.Text.FontSize = fontSize
				z.Text.Align, z.Text.VAlign = g.align, g.valign

				pl, err := c.Composite(p, z, tt.value)
				if err != nil {
					t.Fatal(err)
				}
				if pl.Overflow {
					t.Fatalf("placement overflowed: %+v", pl)
				}
				if shrunk := pl.SizePx < base; shrunk != tt.shrinks {
					t.Fatalf("size %d from base %d, want shrunk=%v", pl.SizePx, base, tt.shrinks)
				}

				inner := InnerRect(z, 72)
				ink := changedBounds(before, p.Image)
				if ink != pl.Ink || !ink.In(inner) {
					t.Fatalf("drawn ink %v, placement %v, inner %v", ink, pl.Ink, inner)
				}
				left, right := ink.Min.X-inner.Min.X, inner.Max.X-ink.Max.X
				top, bottom := ink.Min.Y-inner.Min.Y, inner.Max.Y-ink.Max.Y
				switch g.align {
				case config.AlignCenter:
					if d := right - left; d < 0 || d > 1 {
						t.Errorf("horizontal margins %d/%d, want centered", left, right)
					}
				case config.AlignLeft:
					if left != 0 {
						t.Errorf("left margin %d, want 0", left)
					}
				case config.AlignRight:
					if right != 0 {
						t.Errorf("right margin %d, want 0", right)
					}
				}
				switch g.valign {
				case config.VAlignMiddle:
					if d := bottom - top; d < 0 || d > 1 {
						t.Errorf("vertical margins %d/%d, want middle", top, bottom)
					}
				case config.VAlignTop:
					if top != 0 {
						t.Errorf("top margin %d, want 0", top)
					}
				case config.VAlignBottom:
					if bottom != 0 {
						t.Errorf("bottom margin %d, want 0", bottom)
					}
				}
			})
		}
	}
}

// changedBounds is the smallest rect holding every pixel that differs
// between a and b.
func changedBounds(a, b *image.NRGBA) image.Rectangle {
	var r image.Rectangle
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if a.NRGBAAt(x, y) != b.NRGBAAt(x, y) {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

func TestCompositeClipsToInner(t *testing.T) {
	c := NewCompositor(boxShaper{}, nil, nil)
	p := raster.NewPage(0, 72, solid(120, 60, white))
	z := textZone(14, 40)
	before := imageCopy(p.Image)

	if _, err := c.Composite(p, z, "abcd"); err != nil {
		t.Fatal(err)
	}
	d := Diff(before, p.Image, []image.Rectangle{InnerRect(z, 72)}, 0)
	if d.Changed != 0 {
		t.Errorf("%d pixels changed outside the inner rect", d.Changed)
	}
}

func TestCompositeEmptyTextIsNoop(t *testing.T) {
	c := NewCompositor(unavailableShaper{}, nil, nil)
	for _, v := range []string{"", "  \t"} {
		p := raster.NewPage(0, 72, solid(120, 60, white))
		before := append([]byte(nil), p.Image.Pix...)
		pl, err := c.Composite(p, textZone(100, 40), v)
		if err != nil {
			t.Fatalf("Composite(%q): %v", v, err)
		}
		if pl.SizePx != 0 || !bytes.Equal(before, p.Image.Pix) {
			t.Errorf("Composite(%q) drew something", v)
		}
	}
}

func TestCompositeRendererUnavailable(t *testing.T) {
	p := raster.NewPage(0, 72, solid(120, 60, white))

	_, err := NewCompositor(unavailableShaper{}, nil, nil).Composite(p, textZone(100, 40), "abcd")
	if !errors.Is(err, errors.ErrCodeRendererUnavailable) {
		t.Errorf("err = %v, want RENDERER_UNAVAILABLE", err)
	}

	pl, err := NewCompositor(unavailableShaper{}, boxShaper{}, nil).Composite(p, textZone(100, 40), "abcd")
	if err != nil {
		t.Fatalf("with fallback: %v", err)
	}
	if pl.Renderer != "box" {
		t.Errorf("Renderer = %q, want fallback", pl.Renderer)
	}
}

func TestBlend(t *testing.T) {
	img := solid(4, 1, white)
	m := image.NewAlpha(image.Rect(0, 0, 4, 1))
	m.Pix = []uint8{0, 128, 255, 64}
	res := &text.Result{Mask: m, Ink: m.Bounds(), Color: color.NRGBA{A: 255}}

	Blend(img, res, image.Point{}, img.Bounds())

	want := []uint8{255, 127, 0, 191}
	for x, w := range want {
		if got := img.NRGBAAt(x, 0); got.R != w || got.G != w || got.B != w || got.A != 255 {
			t.Errorf("pixel %d = %v, want gray %d", x, got, w)
		}
	}
}

func testFonts() *fonts.Registry {
	reg := fonts.NewRegistry(nil)
	reg.SetSystemLookup(false)
	return reg
}

func imageCopy(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}
