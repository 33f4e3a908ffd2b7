// Package cli implements the cardpress command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cardpress/pkg/buildinfo"
	"github.com/matzehuels/cardpress/pkg/cache"
	"github.com/matzehuels/cardpress/pkg/document"
	"github.com/matzehuels/cardpress/pkg/fonts"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/raster"
	"github.com/matzehuels/cardpress/pkg/report"
	"github.com/matzehuels/cardpress/pkg/text"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "cardpress"

	// defaultSettingsFile is looked up in the working directory when
	// --settings is not given.
	defaultSettingsFile = "cardpress.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger   *log.Logger
	Settings Settings

	settingsPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:   newLogger(w, level),
		Settings: DefaultSettings(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "cardpress personalizes PDF templates for a list of guests",
		Long:         `cardpress rasterizes a PDF invitation once, erases the configured zones and draws each guest's text into them, producing one PDF per guest.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadSettings()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.settingsPath, "settings", "", "settings file (default ./"+defaultSettingsFile+" if present)")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.zonesCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.fontsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadSettings() error {
	path, required := c.settingsPath, true
	if path == "" {
		path, required = defaultSettingsFile, false
	}
	s, err := LoadSettings(path, required)
	if err != nil {
		return err
	}
	c.Settings = s
	return nil
}

// =============================================================================
// Factories
// =============================================================================

// newFonts builds the font registry from settings.
func (c *CLI) newFonts() *fonts.Registry {
	reg := fonts.NewRegistry(c.Logger)
	for _, dir := range c.Settings.Fonts.Dirs {
		reg.AddDir(dir)
	}
	for family, path := range c.Settings.Fonts.Files {
		reg.Register(family, path)
	}
	reg.SetFallbacks(c.Settings.Fonts.Fallbacks...)
	return reg
}

// newCache opens the configured raster cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Settings.Cache.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		return cache.NewRedisCache(ctx, c.Settings.Cache.Redis)
	}
	dir := c.Settings.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// newBuilder builds the document builder chain from settings.
func (c *CLI) newBuilder() (document.Builder, error) {
	if len(c.Settings.Builders) == 0 {
		return document.Default(c.Logger), nil
	}
	var builders []document.Builder
	for _, name := range c.Settings.Builders {
		b, err := document.ByName(name)
		if err != nil {
			return nil, err
		}
		builders = append(builders, b)
	}
	return document.NewChain(c.Logger, builders...), nil
}

// newReportSink returns the Mongo sink when configured, else JSON files in
// dir. A nil sink means reports are not persisted.
func (c *CLI) newReportSink(ctx context.Context, dir string) (report.Sink, error) {
	if c.Settings.Report.Mongo.URI != "" {
		return report.NewMongoSink(ctx, c.Settings.Report.Mongo)
	}
	if dir == "" {
		return nil, nil
	}
	return report.JSONFile{Dir: dir}, nil
}

// processorOptions returns pipeline options for dpi with the raster cache
// wrapped around the rasterizer.
func (c *CLI) processorOptions(ctx context.Context, dpi int, noCache bool) (pipeline.Options, func(), error) {
	rc, err := c.newCache(ctx, noCache)
	if err != nil {
		return pipeline.Options{}, nil, err
	}
	builder, err := c.newBuilder()
	if err != nil {
		rc.Close()
		return pipeline.Options{}, nil, err
	}
	keyer := cache.NewDefaultKeyer()
	if c.Settings.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Settings.Cache.Prefix)
	}
	reg := c.newFonts()
	policy := pipeline.RendererPolicy(c.Settings.RendererPolicy)
	auto := raster.Auto{PDF: raster.NewGhostscript(c.Logger), Images: raster.Images{}}
	opts := pipeline.Options{
		DPI:        dpi,
		Workers:    c.Settings.Workers,
		Policy:     policy,
		Rasterizer: raster.NewCached(auto, rc, keyer, c.Logger),
		Fonts:      reg,
		Shaper:     text.Select(reg, c.Logger, policy == pipeline.PolicyFail),
		Builder:    builder,
		Keyer:      keyer,
		Logger:     c.Logger,
	}
	if c.Settings.Cache.Documents {
		opts.DocumentCache = rc
	}
	return opts, func() { rc.Close() }, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/cardpress/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
