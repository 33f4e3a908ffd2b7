package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/cardpress/pkg/errors"
)

func TestProgressModelCounts(t *testing.T) {
	var m tea.Model = newProgressModel("Printing cards", 3, nil)

	m, _ = m.Update(guestDoneMsg{index: 0, name: "Asha.pdf", dur: time.Millisecond})
	m, _ = m.Update(guestDoneMsg{index: 1, name: "Ravi.pdf", err: errors.New(errors.ErrCodeZoneBleed, "bleed")})

	pm := m.(progressModel)
	if pm.ok != 1 || pm.failed != 1 {
		t.Fatalf("ok=%d failed=%d, want 1 and 1", pm.ok, pm.failed)
	}
	view := pm.View()
	for _, want := range []string{"Printing cards", "/3", "Asha.pdf", "ZONE_BLEED", "ctrl+c cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressModelRecentIsBounded(t *testing.T) {
	var m tea.Model = newProgressModel("batch", 20, nil)
	for i := range 10 {
		m, _ = m.Update(guestDoneMsg{index: i, name: "g"})
	}
	if got := len(m.(progressModel).recent); got != maxRecent {
		t.Errorf("recent = %d, want %d", got, maxRecent)
	}
}

func TestProgressModelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m tea.Model = newProgressModel("batch", 2, cancel)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("ctrl+c should not quit before the batch finishes")
	}
	if ctx.Err() == nil {
		t.Error("ctrl+c did not cancel the batch")
	}
	if !strings.Contains(m.View(), "canceling") {
		t.Errorf("view = %q", m.View())
	}

	m, cmd = m.Update(batchDoneMsg{})
	if cmd == nil {
		t.Fatal("batchDoneMsg should quit")
	}
	if !m.(progressModel).finished {
		t.Error("model not marked finished")
	}
}

type fakeSender struct{ msgs []tea.Msg }

func (f *fakeSender) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIHooks(t *testing.T) {
	f := &fakeSender{}
	h := tuiHooks{p: f}
	ctx := context.Background()

	h.OnBatchStart(ctx, "run", 1)
	h.OnGuestComplete(ctx, 0, "Asha.pdf", time.Second, nil)
	h.OnBatchComplete(ctx, "run", 1, 0, time.Second)

	if len(f.msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(f.msgs))
	}
	if g, ok := f.msgs[0].(guestDoneMsg); !ok || g.name != "Asha.pdf" {
		t.Errorf("first message = %#v", f.msgs[0])
	}
	if _, ok := f.msgs[1].(batchDoneMsg); !ok {
		t.Errorf("second message = %#v", f.msgs[1])
	}
}
