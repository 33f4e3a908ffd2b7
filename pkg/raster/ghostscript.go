package raster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/matzehuels/cardpress/pkg/errors"
)

// Ghostscript rasterizes PDF documents with the gs executable.
// Requires Ghostscript: brew install ghostscript (macOS), apt install ghostscript (Linux).
type Ghostscript struct {
	// Binary is the executable name or path. Defaults to "gs".
	Binary string

	// Logger receives per-run debug output. Defaults to a discard logger.
	Logger *log.Logger
}

// NewGhostscript returns a Ghostscript rasterizer using gs from PATH.
func NewGhostscript(logger *log.Logger) *Ghostscript {
	return &Ghostscript{Binary: "gs", Logger: logger}
}

// Name implements Rasterizer.
func (g *Ghostscript) Name() string { return "ghostscript" }

// Available reports whether the gs executable can be found.
func (g *Ghostscript) Available() bool {
	_, err := exec.LookPath(g.binary())
	return err == nil
}

func (g *Ghostscript) binary() string {
	if g.Binary == "" {
		return "gs"
	}
	return g.Binary
}

func (g *Ghostscript) logger() *log.Logger {
	if g.Logger == nil {
		return log.New(io.Discard)
	}
	return g.Logger
}

// Render implements Rasterizer. Pages come out as 24-bit RGB with text and
// graphics anti-aliasing enabled.
func (g *Ghostscript) Render(ctx context.Context, doc string, dpi int) ([]*Page, error) {
	if dpi <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "dpi must be positive, got %d", dpi)
	}
	if _, err := os.Stat(doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentLoad, err, "open template %s", doc)
	}
	bin, err := exec.LookPath(g.binary())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDocumentLoad, err,
			"PDF rasterization requires Ghostscript. Install with:\n  macOS:  brew install ghostscript\n  Linux:  apt install ghostscript")
	}

	dir, err := os.MkdirTemp("", "cardpress-gs-*")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create temp dir")
	}
	defer os.RemoveAll(dir)

	args := []string{
		"-q", "-dSAFER", "-dBATCH", "-dNOPAUSE",
		"-sDEVICE=png16m",
		fmt.Sprintf("-r%d", dpi),
		"-dTextAlphaBits=4",
		"-dGraphicsAlphaBits=4",
		"-sOutputFile=" + filepath.Join(dir, "page-%04d.png"),
		doc,
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr

	g.logger().Debug("running ghostscript", "doc", doc, "dpi", dpi)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeDocumentLoad, err, "gs: %s", strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list pages")
	}
	if len(files) == 0 {
		return nil, errors.New(errors.ErrCodeDocumentLoad, "template %s has no pages", doc)
	}
	sort.Strings(files)

	pages := make([]*Page, 0, len(files))
	for i, f := range files {
		img, err := imaging.Open(f)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodePageRender, err, "decode page %d", i+1)
		}
		pages = append(pages, NewPage(i, dpi, img))
	}
	return pages, nil
}

var _ Rasterizer = (*Ghostscript)(nil)
