// Package tui implements the interactive mode: a configuration form for both
// database endpoints and a clone screen with a progress bar and scrolling log.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Nano112/db-clone-tool/internal/config"
)

type screen int

const (
	screenForm screen = iota
	screenClone
)

// startCloneMsg switches to the clone screen with a validated configuration.
type startCloneMsg struct {
	settings config.Settings
}

// backToFormMsg returns to the configuration form after a finished run.
type backToFormMsg struct{}

// model is the root program model; it owns both screens and routes messages
// to whichever is active.
type model struct {
	ctx    context.Context
	screen screen
	form   formModel
	clone  cloneModel
	width  int
	height int
}

// Run starts the interactive UI seeded with the given settings.
func Run(ctx context.Context, settings *config.Settings) error {
	m := model{
		ctx:  ctx,
		form: newFormModel(settings),
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case startCloneMsg:
		m.screen = screenClone
		m.clone = newCloneModel(m.ctx, msg.settings, m.width, m.height)
		return m, m.clone.start()
	case backToFormMsg:
		m.screen = screenForm
		return m, nil
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenForm:
		m.form, cmd = m.form.update(msg)
	case screenClone:
		m.clone, cmd = m.clone.update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if m.screen == screenClone {
		return m.clone.view()
	}
	return m.form.view()
}
