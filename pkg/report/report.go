// Package report records the outcome of a batch run and persists it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/pixel"
)

// Status is the outcome of one guest.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped" // not started before cancellation
)

// GuestResult is the outcome of one guest, keyed by its 0-based ordinal.
type GuestResult struct {
	Index      int               `json:"index" bson:"index"`
	Name       string            `json:"name" bson:"name"`
	Location   string            `json:"location,omitempty" bson:"location,omitempty"`
	Status     Status            `json:"status" bson:"status"`
	ErrorCode  string            `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Error      string            `json:"error,omitempty" bson:"error,omitempty"`
	Renderer   string            `json:"renderer,omitempty" bson:"renderer,omitempty"`
	Placements []pixel.Placement `json:"placements,omitempty" bson:"-"`
	Duration   time.Duration     `json:"duration_ns" bson:"duration_ns"`
}

// Report summarizes a batch run. Results are ordered by guest ordinal.
type Report struct {
	RunID      string        `json:"run_id" bson:"_id"`
	TemplateID string        `json:"template_id" bson:"template_id"`
	DPI        int           `json:"dpi" bson:"dpi"`
	Pages      int           `json:"pages" bson:"pages"`
	Workers    int           `json:"workers" bson:"workers"`
	Canceled   bool          `json:"canceled,omitempty" bson:"canceled,omitempty"`
	StartedAt  time.Time     `json:"started_at" bson:"started_at"`
	Duration   time.Duration `json:"duration_ns" bson:"duration_ns"`
	Results    []GuestResult `json:"results" bson:"results"`
}

// New creates a report for n guests with every result marked skipped.
func New(runID, templateID string, n int) *Report {
	r := &Report{
		RunID:      runID,
		TemplateID: templateID,
		StartedAt:  time.Now().UTC(),
		Results:    make([]GuestResult, n),
	}
	for i := range r.Results {
		r.Results[i] = GuestResult{Index: i, Status: StatusSkipped}
	}
	return r
}

// Fail records err for result i.
func (r *Report) Fail(i int, name string, err error, d time.Duration) {
	r.Results[i] = GuestResult{
		Index:     i,
		Name:      name,
		Status:    StatusFailed,
		ErrorCode: string(errors.GetCode(err)),
		Error:     err.Error(),
		Duration:  d,
	}
}

// Counts returns the number of succeeded, failed and skipped guests.
func (r *Report) Counts() (ok, failed, skipped int) {
	for _, g := range r.Results {
		switch g.Status {
		case StatusOK:
			ok++
		case StatusFailed:
			failed++
		default:
			skipped++
		}
	}
	return ok, failed, skipped
}

// Failures returns the failed results.
func (r *Report) Failures() []GuestResult {
	var out []GuestResult
	for _, g := range r.Results {
		if g.Status == StatusFailed {
			out = append(out, g)
		}
	}
	return out
}

// Sink persists reports.
type Sink interface {
	Save(ctx context.Context, r *Report) error
	Close(ctx context.Context) error
}

// JSONFile writes each report as <dir>/<run id>.json.
type JSONFile struct {
	Dir string
}

// Save implements Sink.
func (s JSONFile) Save(ctx context.Context, r *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	path := filepath.Join(s.Dir, r.RunID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp, path)
}

// Close implements Sink.
func (JSONFile) Close(context.Context) error { return nil }

// Path returns where Save writes the report with the given run id.
func (s JSONFile) Path(runID string) string {
	return filepath.Join(s.Dir, runID+".json")
}

var _ Sink = JSONFile{}
