package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cardpress/pkg/config"
	"github.com/matzehuels/cardpress/pkg/observability"
	"github.com/matzehuels/cardpress/pkg/pipeline"
	"github.com/matzehuels/cardpress/pkg/report"
	"github.com/matzehuels/cardpress/pkg/sink"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	guests         string
	mapping        string
	output         string
	reportDir      string
	dpi            int
	workers        int
	policy         string
	strict         bool
	rejectOverlaps bool
	noCache        bool
	plain          bool
}

func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Personalize the template for every guest",
		Long: `Run rasterizes the template once, then writes one PDF per guest row.

Guests are read from a CSV file whose header names the fields. The mapping
routes fields to zones; without --mapping every zone reads the field with
the same name.`,
		Example: `  cardpress run wedding.json --guests guests.csv --mapping mapping.json -o out/`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("dpi") {
				opts.dpi = c.Settings.DPI
			}
			if !flags.Changed("workers") {
				opts.workers = c.Settings.Workers
			}
			if !flags.Changed("policy") {
				opts.policy = c.Settings.RendererPolicy
			}
			if !flags.Changed("report-dir") {
				opts.reportDir = c.Settings.Report.Dir
			}
			return c.runBatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.guests, "guests", "g", "", "guest CSV file (required)")
	cmd.Flags().StringVarP(&opts.mapping, "mapping", "m", "", "field to zone mapping JSON (default: zone ids as field names)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "out", "output directory")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "write the run report as JSON into this directory")
	cmd.Flags().IntVar(&opts.dpi, "dpi", pipeline.DefaultDPI, "rasterization resolution")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "guests processed in parallel (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.policy, "policy", string(pipeline.PolicyDegrade), "when shaping is unavailable: degrade or fail")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail guests whose edits touch pixels outside their zones")
	cmd.Flags().BoolVar(&opts.rejectOverlaps, "reject-overlaps", false, "treat overlapping zones as a config error")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "rasterize the template even if it is cached")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress instead of the interactive view")
	_ = cmd.MarkFlagRequired("guests")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, configPath string, ro runOpts) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	guests, err := pipeline.LoadGuestsFile(ro.guests)
	if err != nil {
		return err
	}
	mapping := pipeline.IdentityMapping(cfg)
	if ro.mapping != "" {
		if mapping, err = pipeline.LoadMapping(ro.mapping); err != nil {
			return err
		}
	}
	writer, err := sink.NewFileWriter(ro.output)
	if err != nil {
		return err
	}

	interactive := !ro.plain && isatty.IsTerminal(os.Stdout.Fd())

	opts, closeCache, err := c.processorOptions(ctx, ro.dpi, ro.noCache)
	if err != nil {
		return err
	}
	defer closeCache()
	opts.Workers = ro.workers
	opts.Policy = pipeline.RendererPolicy(ro.policy)
	opts.Strict = ro.strict
	opts.RejectOverlaps = ro.rejectOverlaps

	// the progress view owns the terminal; log lines are replayed afterwards
	var logs syncBuffer
	if interactive {
		opts.Logger = newLogger(&logs, log.WarnLevel)
	}

	proc, err := c.prepare(ctx, cfg, opts, interactive)
	if err != nil {
		return err
	}

	var rep *report.Report
	if interactive {
		rep, err = runInteractive(ctx, proc, cfg, guests, mapping, writer)
		if s := logs.String(); s != "" {
			fmt.Fprint(os.Stderr, s)
		}
	} else {
		rep, err = proc.Run(ctx, guests, mapping, writer)
	}
	if rep == nil {
		return err
	}

	if rs, serr := c.newReportSink(ctx, ro.reportDir); serr != nil {
		c.Logger.Warn("report sink unavailable", "err", serr)
	} else if rs != nil {
		saveCtx := context.WithoutCancel(ctx)
		if serr := rs.Save(saveCtx, rep); serr != nil {
			c.Logger.Warn("save report failed", "err", serr)
		}
		_ = rs.Close(saveCtx)
	}

	printBatchSummary(rep)
	printFile(ro.output)
	if err != nil {
		return err
	}
	if _, failed, _ := rep.Counts(); failed > 0 {
		return fmt.Errorf("%d of %d guests failed", failed, len(rep.Results))
	}
	if len(rep.Results) > 0 {
		printNextStep("Check the first card", "open "+filepath.Join(ro.output, rep.Results[0].Name))
	}
	return nil
}

// prepare builds the processor, showing a spinner while the template is
// rasterized when attached to a terminal.
func (c *CLI) prepare(ctx context.Context, cfg *config.Config, opts pipeline.Options, interactive bool) (*pipeline.Processor, error) {
	var spin *Spinner
	if interactive {
		spin = newSpinnerWithContext(ctx, "Rasterizing "+filepath.Base(cfg.BasePDFPath))
		spin.Start()
	}
	prog := newProgress(c.Logger)
	proc, err := pipeline.NewProcessor(ctx, cfg, opts)
	if spin != nil {
		if err != nil {
			spin.StopWithError(err.Error())
			return nil, err
		}
		t := proc.Template()
		spin.StopWithSuccess(fmt.Sprintf("Rasterized %s (%s)", cfg.TemplateID, prog.elapsed()))
		fmt.Fprintln(out, templateStats(len(t.Pages), t.DPI, t.Cached))
		return proc, nil
	}
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Rasterized %d pages", len(proc.Template().Pages)))
	return proc, nil
}

// runInteractive runs the batch behind a bubbletea progress view.
func runInteractive(ctx context.Context, proc *pipeline.Processor, cfg *config.Config, guests []pipeline.Guest, m pipeline.Mapping, w sink.Writer) (*report.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel("Personalizing "+cfg.TemplateID, len(guests), cancel))
	observability.SetBatchHooks(tuiHooks{p: p})
	defer observability.SetBatchHooks(observability.NoopBatchHooks{})

	type result struct {
		rep *report.Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := proc.Run(ctx, guests, m, w)
		done <- result{rep, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		r := <-done
		return r.rep, fmt.Errorf("progress view: %w", err)
	}
	r := <-done
	return r.rep, r.err
}
