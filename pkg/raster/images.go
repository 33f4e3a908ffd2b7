package raster

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// imageExts are the template extensions handled by Images.
var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// IsImagePath reports whether path names a PNG or JPEG file.
func IsImagePath(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Images treats raster files as already-rendered pages. doc may be a single
// image (one page) or a directory whose image files, sorted by name, are the
// pages.
type Images struct {
	// SourceDPI is the resolution the images were produced at. When it
	// differs from the requested dpi the pages are resampled. Zero means the
	// images are already at the requested resolution.
	SourceDPI int
}

// Name implements Rasterizer.
func (r Images) Name() string { return "images" }

// Render implements Rasterizer.
func (r Images) Render(ctx context.Context, doc string, dpi int) ([]*Page, error) {
	if dpi <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "dpi must be positive, got %d", dpi)
	}
	files, err := r.files(doc)
	if err != nil {
		return nil, err
	}

	pages := make([]*Page, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := imaging.Open(f, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePageRender, err, "decode page %d (%s)", i+1, filepath.Base(f))
		}
		pages = append(pages, NewPage(i, dpi, r.resample(img, dpi)))
	}
	return pages, nil
}

func (r Images) files(doc string) ([]string, error) {
	info, err := os.Stat(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentLoad, err, "open template %s", doc)
	}
	if !info.IsDir() {
		if !IsImagePath(doc) {
			return nil, errors.New(errors.ErrCodeDocumentLoad, "unsupported template type %s", filepath.Ext(doc))
		}
		return []string{doc}, nil
	}

	entries, err := os.ReadDir(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentLoad, err, "read template dir %s", doc)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsImagePath(e.Name()) {
			files = append(files, filepath.Join(doc, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentLoad, "template dir %s has no pages", doc)
	}
	sort.Strings(files)
	return files, nil
}

func (r Images) resample(img image.Image, dpi int) image.Image {
	if r.SourceDPI <= 0 || r.SourceDPI == dpi {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx())*float64(dpi)/float64(r.SourceDPI) + 0.5)
	h := int(float64(b.Dy())*float64(dpi)/float64(r.SourceDPI) + 0.5)
	return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
}

// Static serves fixed, already-decoded page images. dpi is recorded on the
// pages but the images are not resampled.
type Static []image.Image

// Name implements Rasterizer.
func (s Static) Name() string { return "static" }

// Render implements Rasterizer.
func (s Static) Render(ctx context.Context, doc string, dpi int) ([]*Page, error) {
	if len(s) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentLoad, "template has no pages")
	}
	pages := make([]*Page, len(s))
	for i, img := range s {
		pages[i] = NewPage(i, dpi, img)
	}
	return pages, nil
}

// Auto dispatches on the document type: images and image directories go to
// Images, everything else to PDF.
type Auto struct {
	PDF    Rasterizer
	Images Rasterizer
}

// Name implements Rasterizer.
func (a Auto) Name() string { return "auto" }

// Render implements Rasterizer.
func (a Auto) Render(ctx context.Context, doc string, dpi int) ([]*Page, error) {
	return a.pick(doc).Render(ctx, doc, dpi)
}

// Backend returns the rasterizer that Render would use for doc.
func (a Auto) Backend(doc string) Rasterizer {
	return a.pick(doc)
}

func (a Auto) pick(doc string) Rasterizer {
	if info, err := os.Stat(doc); (err == nil && info.IsDir()) || IsImagePath(doc) {
		if a.Images != nil {
			return a.Images
		}
		return Images{}
	}
	if a.PDF != nil {
		return a.PDF
	}
	return NewGhostscript(nil)
}

var (
	_ Rasterizer = Images{}
	_ Rasterizer = Static(nil)
	_ Rasterizer = Auto{}
)
