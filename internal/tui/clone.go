package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Nano112/db-clone-tool/internal/clone"
	"github.com/Nano112/db-clone-tool/internal/config"
	"github.com/Nano112/db-clone-tool/internal/lock"
	"github.com/Nano112/db-clone-tool/internal/sshtunnel"
)

type cloneEventKind int

const (
	eventLog cloneEventKind = iota
	eventProgress
	eventDone
)

// cloneEvent crosses from the clone goroutine into the bubbletea loop.
type cloneEvent struct {
	kind cloneEventKind
	line string
	pct  int
	err  error
}

// cloneModel is the in-progress screen: a progress bar over a scrolling log.
type cloneModel struct {
	jobCtx   context.Context
	cancel   context.CancelFunc
	settings config.Settings

	events   chan cloneEvent
	progress progress.Model
	viewport viewport.Model
	lines    []string

	pct      int
	done     bool
	failed   bool
	canceled bool
	err      error

	width  int
	height int
}

func newCloneModel(parent context.Context, s config.Settings, width, height int) cloneModel {
	jobCtx, cancel := context.WithCancel(parent)
	m := cloneModel{
		jobCtx:   jobCtx,
		cancel:   cancel,
		settings: s,
		events:   make(chan cloneEvent, 64),
		progress: progress.New(progress.WithDefaultGradient()),
		width:    width,
		height:   height,
	}
	m.viewport = viewport.New(max(width-4, 20), max(height-10, 5))
	return m
}

// start launches the clone in its own goroutine and begins pumping events.
func (m cloneModel) start() tea.Cmd {
	events := m.events
	ctx, settings := m.jobCtx, m.settings
	go func() {
		rep := clone.FuncReporter{
			OnProgress: func(pct int) { events <- cloneEvent{kind: eventProgress, pct: pct} },
			OnLog:      func(line string) { events <- cloneEvent{kind: eventLog, line: line} },
		}
		err := runJob(ctx, settings, rep)
		events <- cloneEvent{kind: eventDone, err: err}
	}()
	return m.waitForEvent()
}

// waitForEvent blocks on the event channel; the update loop re-issues it
// after every event until eventDone arrives.
func (m cloneModel) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg { return <-events }
}

// runJob runs the same pipeline as the headless clone command: optional SSH
// tunnel, per-target lock, then the orchestrator.
func runJob(ctx context.Context, s config.Settings, rep clone.Reporter) error {
	source := s.Source
	if s.SSH.Enabled() {
		tunnel, port, err := sshtunnel.Open(ctx, s.SSH.TunnelConfig(), source.Addr())
		if err != nil {
			return fmt.Errorf("open ssh tunnel: %w", err)
		}
		defer tunnel.Close()
		source.Host, source.Port = "127.0.0.1", port
	}

	fl := lock.New(s.Target.Redacted())
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another clone into %s is already running", s.Target.Redacted())
	}
	defer fl.Unlock()

	cfg := &clone.Config{Source: source, Target: s.Target}
	clone.Preflight(ctx, cfg, rep)
	return clone.Run(ctx, cfg, rep)
}

func (m cloneModel) update(msg tea.Msg) (cloneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-10, 5)
		m.refreshLog()
		return m, nil

	case cloneEvent:
		switch msg.kind {
		case eventProgress:
			if msg.pct > m.pct {
				m.pct = msg.pct
			}
			return m, m.waitForEvent()
		case eventLog:
			m.lines = append(m.lines, msg.line)
			m.refreshLog()
			return m, m.waitForEvent()
		case eventDone:
			m.done = true
			m.err = msg.err
			m.failed = msg.err != nil
			m.cancel() // job finished; release the context
			return m, nil
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "c", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.canceled {
				m.canceled = true
				m.cancel()
				m.lines = append(m.lines, "Cancel requested, stopping...")
				m.refreshLog()
			}
			return m, nil
		case "b", "esc":
			if m.done {
				return m, func() tea.Msg { return backToFormMsg{} }
			}
		case "q":
			if m.done {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *cloneModel) refreshLog() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m cloneModel) view() string {
	title := "Database Clone in Progress"
	if m.done {
		if m.failed {
			title = "Database Clone Failed"
		} else {
			title = "Database Clone Complete"
		}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(float64(m.pct) / 100))
	b.WriteString("\n\n")
	b.WriteString(logStyle.Render(m.viewport.View()))
	b.WriteString("\n")

	if m.done {
		if m.failed {
			b.WriteString(errorStyle.Render(m.err.Error()))
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("b back to config · q quit"))
	} else {
		b.WriteString(helpStyle.Render("c cancel"))
	}
	return b.String()
}
