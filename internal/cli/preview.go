package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/pixel"
)

type previewOpts struct {
	output  string
	dpi     int
	guests  string
	mapping string
	row     int
	noCache bool
}

// previewCommand renders zone overlays, and optionally one personalized
// guest, as PNG files.
func (c *CLI) previewCommand() *cobra.Command {
	var opts previewOpts

	cmd := &cobra.Command{
		Use:   "preview <config>",
		Short: "Render zone overlays and a sample card as PNG",
		Long: `Preview rasterizes the template at preview resolution and writes:

  page-<n>-zones.png   every zone rect (red) and its inner text area (blue)
  page-<n>-guest.png   the card for guest --row, when --guests is given`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("dpi") {
				opts.dpi = c.Settings.PreviewDPI
			}
			return c.runPreview(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "preview", "output directory")
	cmd.Flags().IntVar(&opts.dpi, "dpi", pipeline.PreviewDPI, "preview resolution")
	cmd.Flags().StringVarP(&opts.guests, "guests", "g", "", "guest CSV file")
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "field to zone mapping JSON")
	cmd.Flags().IntVar(&opts.row, "row", 1, "guest row to render (1-based)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "rasterize the template even if it is cached")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, configPath string, po previewOpts) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	opts, closeCache, err := c.processorOptions(ctx, po.dpi, po.noCache)
	if err != nil {
		return err
	}
	defer closeCache()

	proc, err := pipeline.NewProcessor(ctx, cfg, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(po.output, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", po.output)
	}

	tmpl := proc.Template()
	for _, page := range tmpl.Pages {
		if !hasZones(cfg, page.Index) {
			continue
		}
		path := filepath.Join(po.output, fmt.Sprintf("page-%d-zones.png", page.Index+1))
		if err := savePNG(path, pixel.DrawZones(page, cfg.Zones)); err != nil {
			return err
		}
		printFile(path)
	}

	if po.guests == "" {
		return nil
	}
	guests, err := pipeline.LoadGuestsFile(po.guests)
	if err != nil {
		return err
	}
	if po.row < 1 || po.row > len(guests) {
		return errors.New(errors.ErrCodeInvalidInput, "row %d out of range (%d guests)", po.row, len(guests))
	}
	mapping := pipeline.IdentityMapping(cfg)
	if po.mapping != "" {
		if mapping, err = pipeline.LoadMapping(po.mapping); err != nil {
			return err
		}
	}

	edit, err := proc.Personalize(po.row-1, guests[po.row-1], mapping)
	if err != nil {
		return err
	}
	for i, page := range edit.Pages {
		if page == tmpl.Pages[i] {
			continue
		}
		path := filepath.Join(po.output, fmt.Sprintf("page-%d-guest.png", i+1))
		if err := savePNG(path, page.Image); err != nil {
			return err
		}
		printFile(path)
	}
	for _, pl := range edit.Placements {
		if pl.Overflow {
			printWarning("zone %s: text clipped at %dpx", pl.ZoneID, pl.SizePx)
		}
	}
	printSuccess("Preview of row %d written to %s", po.row, po.output)
	return nil
}

func hasZones(cfg *config.Config, index int) bool {
	for _, z := range cfg.Zones {
		if z.PageIndex() == index {
			return true
		}
	}
	return false
}

func savePNG(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrap(errors.ErrCodeEncoding, err, "write %s", path)
	}
	return nil
}
