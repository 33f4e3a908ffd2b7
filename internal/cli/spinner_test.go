package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestSpinnerWritesMessage(t *testing.T) {
	var buf syncBuffer
	s := newSpinner("Rasterizing template")
	s.w = &buf
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.SetMessage("Probing fonts")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	got := buf.String()
	if !strings.Contains(got, "Rasterizing template") || !strings.Contains(got, "Probing fonts") {
		t.Errorf("spinner output %q lacks messages", got)
	}
	if !strings.HasSuffix(got, "\r") {
		t.Error("line not cleared after Stop")
	}
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.w = io.Discard
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.w = io.Discard
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Testing idempotent stop...")
	s.w = io.Discard
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()

	s := newSpinner("Working")
	s.w = io.Discard
	s.Start()
	s.StopWithSuccess("Done")

	s = newSpinner("Working")
	s.w = io.Discard
	s.Start()
	s.StopWithError("Failed")

	got := buf.String()
	if !strings.Contains(got, iconSuccess+" Done") || !strings.Contains(got, iconError+" Failed") {
		t.Errorf("status output = %q", got)
	}
}
