package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cardpress/pkg/buildinfo"
	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/document"
	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/text"
)

// zonesCommand validates a config and lists its zones.
func (c *CLI) zonesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "zones <config>",
		Short: "Validate a config and list its zones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				printError("%s", errors.UserMessage(err))
				return err
			}
			printKeyValue("template", cfg.TemplateID)
			printKeyValue("document", cfg.BasePDFPath)
			printKeyValue("filenames", cfg.OutputFilenameTemplate)
			fmt.Fprintln(out, zoneTable(cfg.Zones))
			for _, o := range cfg.Overlaps() {
				printWarning("zones %s and %s overlap on page %d; %s is drawn last", o.A, o.B, o.Page, o.B)
			}
			printSuccess("%d zones valid", len(cfg.Zones))
			return nil
		},
	}
}

func zoneTable(zones []config.Zone) string {
	rows := make([][]string, len(zones))
	for i, z := range zones {
		mask := string(z.Mask.Mode)
		if !z.Mask.Active() {
			mask = "off"
		}
		rows[i] = []string{
			z.ZoneID,
			fmt.Sprint(z.PageNumber),
			fmt.Sprintf("%g,%g %gx%g", z.Rect.X, z.Rect.Y, z.Rect.Width, z.Rect.Height),
			mask,
			fmt.Sprintf("%s %gpt", z.Text.FontFamily, z.Text.FontSize),
			string(z.Text.Align) + "/" + string(z.Text.VAlign),
		}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Zone", "Page", "Rect (pt)", "Mask", "Font", "Align").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 0 {
				return StyleNumber
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// inspectCommand prints the page sizes of generated documents.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <pdf>...",
		Short: "Print the page sizes of generated PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return errors.Wrap(errors.ErrCodeDocumentLoad, err, "read %s", path)
				}
				boxes, err := document.MediaBoxes(data)
				if err != nil {
					printError("%s: %s", path, errors.UserMessage(err))
					continue
				}
				sizes := make([]string, len(boxes))
				for i, b := range boxes {
					sizes[i] = fmt.Sprintf("%gx%g", b.Width, b.Height)
				}
				printKeyValue(fmt.Sprintf("%d pages", len(boxes)), path)
				printDetail("%s pt", strings.Join(sizes, ", "))
			}
			return nil
		},
	}
}

// fontsCommand lists known font families and the active renderer.
func (c *CLI) fontsCommand() *cobra.Command {
	var family string
	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "List fonts and check shaping support",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := c.newFonts()
			if err := text.Probe(); err != nil {
				printWarning("shaping unavailable, text is drawn unshaped: %v", err)
			} else {
				printSuccess("shaping available")
			}
			printKeyValue("renderer", text.Select(reg, c.Logger, c.Settings.RendererPolicy == string(pipeline.PolicyFail)).Name())

			if family != "" {
				chain := reg.Chain(family)
				names := make([]string, len(chain))
				for i, f := range chain {
					names[i] = f.Family
				}
				if _, err := reg.Resolve(family); err != nil {
					printWarning("%s not found, falling back", family)
				}
				printKeyValue("chain", strings.Join(names, " → "))
				return nil
			}
			for _, f := range reg.List() {
				printFile(f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "show the fallback chain for a family")
	return cmd
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			printKeyValue("version", buildinfo.Version)
			printKeyValue("commit", buildinfo.Commit)
			printKeyValue("built", buildinfo.Date)
		},
	}
}
