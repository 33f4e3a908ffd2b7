package document

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/raster"
)

func testPages() []*raster.Page {
	return []*raster.Page{
		raster.NewPage(0, 150, imaging.New(300, 150, color.NRGBA{200, 30, 30, 255})),
		raster.NewPage(1, 150, imaging.New(150, 300, color.White)),
	}
}

func assertBoxes(t *testing.T, pdf []byte, want []Box) {
	t.Helper()
	got, err := MediaBoxes(pdf)
	if err != nil {
		t.Fatalf("MediaBoxes: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i].Width-want[i].Width) > 0.01 || math.Abs(got[i].Height-want[i].Height) > 0.01 {
			t.Errorf("page %d: %+v, want %+v", i+1, got[i], want[i])
		}
	}
}

func TestBuilders(t *testing.T) {
	want := []Box{{144, 72}, {72, 144}}
	for _, b := range []Builder{NewImageStream(), &ImageStream{Format: Flate}, NewFPDF()} {
		t.Run(b.Name(), func(t *testing.T) {
			pdf, err := b.Build(testPages())
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !bytes.HasPrefix(pdf, []byte("%PDF-1.")) {
				t.Errorf("missing PDF header: %q", pdf[:min(len(pdf), 16)])
			}
			if !bytes.Contains(pdf[len(pdf)-16:], []byte("%%EOF")) {
				t.Error("missing EOF marker")
			}
			assertBoxes(t, pdf, want)
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	for _, b := range []Builder{NewImageStream(), NewFPDF()} {
		if _, err := b.Build(nil); err == nil {
			t.Errorf("%s: expected error for no pages", b.Name())
		}
	}
	if _, err := Default(nil).Build(nil); !errors.Is(err, errors.ErrCodeEncoding) {
		t.Errorf("chain with no pages = %v, want ENCODING", err)
	}
}

func TestImageStreamXref(t *testing.T) {
	pdf, err := NewImageStream().Build(testPages())
	if err != nil {
		t.Fatal(err)
	}
	s := string(pdf)
	start, err := strconv.Atoi(strings.TrimSpace(s[strings.LastIndex(s, "startxref")+len("startxref") : strings.LastIndex(s, "%%EOF")]))
	if err != nil {
		t.Fatalf("startxref: %v", err)
	}
	if !strings.HasPrefix(s[start:], "xref\n") {
		t.Fatalf("startxref %d does not point at the xref table", start)
	}

	lines := strings.Split(s[start:], "\n")
	var size int
	if _, err := fmt.Sscanf(lines[1], "0 %d", &size); err != nil {
		t.Fatalf("xref header %q: %v", lines[1], err)
	}
	if size != 1+3+3*2 {
		t.Errorf("xref size = %d, want 10", size)
	}
	for n := 1; n < size; n++ {
		off, err := strconv.Atoi(lines[2+n][:10])
		if err != nil {
			t.Fatal(err)
		}
		if want := fmt.Sprintf("%d 0 obj", n); !strings.HasPrefix(s[off:], want) {
			t.Errorf("xref entry %d points at %q", n, s[off:off+10])
		}
	}
}

type failingBuilder struct{ calls int }

func (f *failingBuilder) Name() string { return "failing" }

func (f *failingBuilder) Build([]*raster.Page) ([]byte, error) {
	f.calls++
	return nil, fmt.Errorf("encoder broke")
}

func TestChain(t *testing.T) {
	bad := &failingBuilder{}
	c := NewChain(nil, bad, NewImageStream())
	pdf, err := c.Build(testPages())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bad.calls != 1 || len(pdf) == 0 {
		t.Errorf("chain should fall through to the second builder")
	}
	if c.Name() != "failing,stream" {
		t.Errorf("Name = %q", c.Name())
	}

	_, err = NewChain(nil, &failingBuilder{}, &failingBuilder{}).Build(testPages())
	if !errors.Is(err, errors.ErrCodeEncoding) {
		t.Errorf("all builders failing = %v, want ENCODING", err)
	}
	if err != nil && !strings.Contains(err.Error(), "encoder broke") {
		t.Errorf("error should carry the last failure: %v", err)
	}
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{
		"stream":       "stream",
		"FPDF":         "fpdf",
		"stream-flate": "stream-flate",
	} {
		b, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if b.Name() != want {
			t.Errorf("ByName(%q).Name() = %q", name, b.Name())
		}
	}
	if _, err := ByName("pdfium"); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("unknown builder = %v, want INVALID_CONFIG", err)
	}
}

func TestMediaBoxesRejectsGarbage(t *testing.T) {
	if _, err := MediaBoxes([]byte("not a pdf")); err == nil {
		t.Error("expected error")
	}
}
