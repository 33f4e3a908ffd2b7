package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/cardpress/pkg/errors"
	"github.com/matzehuels/cardpress/pkg/observability"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	barWidth    = 40
	maxRecent   = 6
	minBarWidth = 10
)

// =============================================================================
// Messages
// =============================================================================

type guestDoneMsg struct {
	index int
	name  string
	dur   time.Duration
	err   error
}

type batchDoneMsg struct{}

// =============================================================================
// progressModel - live batch progress
// =============================================================================

// progressModel shows a progress bar, counts and the latest finished guests
// while a batch runs. ctrl+c cancels the batch; the view stays until the
// running guests finish.
type progressModel struct {
	title  string
	total  int
	ok     int
	failed int
	recent []string
	start  time.Time
	width  int

	cancel    context.CancelFunc
	canceling bool
	finished  bool
}

func newProgressModel(title string, total int, cancel context.CancelFunc) progressModel {
	return progressModel{
		title:  title,
		total:  total,
		start:  time.Now(),
		width:  barWidth,
		cancel: cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.canceling && m.cancel != nil {
				m.cancel()
			}
			m.canceling = true
		}
	case tea.WindowSizeMsg:
		m.width = max(min(msg.Width-20, barWidth), minBarWidth)
	case guestDoneMsg:
		line := fmt.Sprintf("%s %s %s", styleIconSuccess.Render(iconSuccess), msg.name, StyleDim.Render(msg.dur.Round(time.Millisecond).String()))
		if msg.err != nil {
			m.failed++
			code := errors.GetCode(msg.err)
			if code == "" {
				code = "ERROR"
			}
			line = fmt.Sprintf("%s %s %s", styleIconError.Render(iconError), msg.name, StyleError.Render(string(code)))
		} else {
			m.ok++
		}
		m.recent = append(m.recent, line)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}
	case batchDoneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.title))
	b.WriteString("\n\n")

	done := m.ok + m.failed
	filled := 0
	if m.total > 0 {
		filled = done * m.width / m.total
	}
	b.WriteString("  ")
	b.WriteString(barFullStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(barEmptyStyle.Render(strings.Repeat("░", m.width-filled)))
	b.WriteString(fmt.Sprintf(" %s/%d", StyleNumber.Render(fmt.Sprint(done)), m.total))
	b.WriteString("\n")

	stats := fmt.Sprintf("  %d ok · %d failed · %s", m.ok, m.failed, time.Since(m.start).Round(time.Second))
	b.WriteString(StyleDim.Render(stats))
	b.WriteString("\n\n")

	for _, line := range m.recent {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch {
	case m.finished:
	case m.canceling:
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render("  canceling, waiting for running guests..."))
		b.WriteString("\n")
	default:
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("  ctrl+c cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Hooks
// =============================================================================

// sender is the part of *tea.Program the hooks need.
type sender interface {
	Send(msg tea.Msg)
}

// tuiHooks forwards batch events into a running progress view.
type tuiHooks struct {
	observability.NoopBatchHooks
	p sender
}

func (h tuiHooks) OnGuestComplete(_ context.Context, index int, name string, dur time.Duration, err error) {
	h.p.Send(guestDoneMsg{index: index, name: name, dur: dur, err: err})
}

func (h tuiHooks) OnBatchComplete(context.Context, string, int, int, time.Duration) {
	h.p.Send(batchDoneMsg{})
}
