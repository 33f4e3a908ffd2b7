package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/observability"
	"github.com/matzehuels/cardpress/pkg/report"
	"github.com/matzehuels/cardpress/pkg/sink"
)

// Run processes guests with up to Options.Workers goroutines and writes each
// document through w.
//
// A failing guest is recorded in the report and never stops the batch.
// Output names are resolved before any work starts, so they are the same
// for every worker count. When ctx is canceled no further guest is started;
// guests already running finish and are written. The report is always
// returned; the error is non-nil only for cancellation.
func (p *Processor) Run(ctx context.Context, guests []Guest, m Mapping, w sink.Writer) (*report.Report, error) {
	cfg := p.tmpl.Config
	logger := p.opts.Logger

	if unknown := m.Unknown(cfg); len(unknown) > 0 {
		logger.Warn("mapping targets unknown zones", "zones", unknown)
	}

	runID := uuid.NewString()
	names := ResolveNames(cfg, guests, m)
	rep := report.New(runID, cfg.TemplateID, len(guests))
	rep.DPI = p.tmpl.DPI
	rep.Pages = len(p.tmpl.Pages)
	rep.Workers = p.opts.Workers

	start := time.Now()
	logger.Info("batch started", "run", runID, "guests", len(guests), "workers", p.opts.Workers)
	observability.Batch().OnBatchStart(ctx, runID, len(guests))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i := range guests {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rep.Results[i] = p.runGuest(context.WithoutCancel(ctx), i, names[i], guests[i], m, w)
			return nil
		})
	}
	_ = g.Wait()

	rep.Duration = time.Since(start)
	ok, failed, skipped := rep.Counts()
	observability.Batch().OnBatchComplete(ctx, runID, ok, failed, rep.Duration)

	if err := ctx.Err(); err != nil {
		rep.Canceled = true
		logger.Warn("batch canceled", "run", runID, "ok", ok, "failed", failed, "skipped", skipped)
		return rep, errors.Wrap(errors.ErrCodeCanceled, err, "batch %s canceled", runID)
	}
	logger.Info("batch complete", "run", runID, "ok", ok, "failed", failed, "duration", rep.Duration)
	return rep, nil
}

func (p *Processor) runGuest(ctx context.Context, i int, name string, guest Guest, m Mapping, w sink.Writer) report.GuestResult {
	observability.Batch().OnGuestStart(ctx, i)
	start := time.Now()

	out, err := p.ProcessGuest(ctx, i, name, guest, m)
	var loc string
	if err == nil {
		loc, err = w.Write(ctx, name, out.Data)
	}
	dur := time.Since(start)
	observability.Batch().OnGuestComplete(ctx, i, name, dur, err)

	if err != nil {
		p.opts.Logger.Error("guest failed", "guest", i+1, "name", name, "code", errors.GetCode(err), "err", err)
		return report.GuestResult{
			Index:     i,
			Name:      name,
			Status:    report.StatusFailed,
			ErrorCode: string(errors.GetCode(err)),
			Error:     err.Error(),
			Duration:  dur,
		}
	}
	p.opts.Logger.Debug("guest done", "guest", i+1, "name", name, "location", loc, "cached", out.Cached, "duration", dur)
	return report.GuestResult{
		Index:      i,
		Name:       name,
		Location:   loc,
		Status:     report.StatusOK,
		Renderer:   out.Renderer,
		Placements: out.Placements,
		Duration:   dur,
	}
}
