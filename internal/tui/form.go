package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nano112/db-clone-tool/internal/config"
	"github.com/Nano112/db-clone-tool/internal/postgres"
)

// Focus slots, top to bottom. The source column comes first, then the target
// column, then the action row.
const (
	idxSrcHost = iota
	idxSrcPort
	idxSrcDatabase
	idxSrcUsername
	idxSrcPassword
	idxSrcSSL
	idxTgtHost
	idxTgtPort
	idxTgtDatabase
	idxTgtUsername
	idxTgtPassword
	idxTgtSSL
	idxLoadEnv
	idxTest
	idxStart
	nFocusable
)

// testResultMsg carries the outcome of one side's connection test. next,
// when set, runs the other side's test after the notice lands.
type testResultMsg struct {
	text string
	err  bool
	next tea.Cmd
}

// formModel is the configuration screen: ten text inputs, two SSL toggles
// and three actions.
type formModel struct {
	inputs []textinput.Model // 0-4 source, 5-9 target
	srcSSL bool
	tgtSSL bool
	ssh    config.SSHSettings

	focus     int
	notice    string
	noticeErr bool
}

func newFormModel(settings *config.Settings) formModel {
	m := formModel{
		inputs: make([]textinput.Model, 10),
		srcSSL: settings.Source.SSL,
		tgtSSL: settings.Target.SSL,
		ssh:    settings.SSH,
	}

	placeholders := []string{"Host", "Port (5432)", "Database", "Username", "Password"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i%5]
		ti.Prompt = ""
		ti.CharLimit = 128
		if i%5 == 4 {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		m.inputs[i] = ti
	}

	m.populate(settings)
	m.inputs[0].Focus()
	return m
}

// populate fills the inputs from settings without touching focus.
func (m *formModel) populate(s *config.Settings) {
	src, tgt := s.Source, s.Target
	m.inputs[0].SetValue(src.Host)
	m.inputs[1].SetValue(portValue(src.Port))
	m.inputs[2].SetValue(src.Database)
	m.inputs[3].SetValue(src.Username)
	m.inputs[4].SetValue(src.Password)
	m.inputs[5].SetValue(tgt.Host)
	m.inputs[6].SetValue(portValue(tgt.Port))
	m.inputs[7].SetValue(tgt.Database)
	m.inputs[8].SetValue(tgt.Username)
	m.inputs[9].SetValue(tgt.Password)
}

// portValue renders a port for an input field; zero stays empty so the
// placeholder shows through.
func portValue(p int) string {
	if p <= 0 {
		return ""
	}
	return strconv.Itoa(p)
}

// inputIndex maps a focus slot to an index in m.inputs, or -1 for toggles
// and buttons.
func (m *formModel) inputIndex(focus int) int {
	switch {
	case focus >= idxSrcHost && focus <= idxSrcPassword:
		return focus
	case focus >= idxTgtHost && focus <= idxTgtPassword:
		return focus - 1 // the source SSL slot sits between the columns
	}
	return -1
}

func (m *formModel) setFocus(f int) {
	if f < 0 {
		f = nFocusable - 1
	}
	if f >= nFocusable {
		f = 0
	}
	if i := m.inputIndex(m.focus); i >= 0 {
		m.inputs[i].Blur()
	}
	m.focus = f
	if i := m.inputIndex(m.focus); i >= 0 {
		m.inputs[i].Focus()
	}
}

func (m formModel) update(msg tea.Msg) (formModel, tea.Cmd) {
	switch msg := msg.(type) {
	case testResultMsg:
		m.notice = msg.text
		m.noticeErr = msg.err
		return m, msg.next

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab", "down":
			m.setFocus(m.focus + 1)
			return m, nil

		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return m, nil

		case "enter":
			switch m.focus {
			case idxLoadEnv:
				return m.reloadFromEnv()
			case idxTest:
				m.notice, m.noticeErr = "Testing connections...", false
				return m, m.testConnections()
			case idxStart:
				return m.startClone()
			default:
				m.setFocus(m.focus + 1)
				return m, nil
			}

		case " ":
			switch m.focus {
			case idxSrcSSL:
				m.srcSSL = !m.srcSSL
				return m, nil
			case idxTgtSSL:
				m.tgtSSL = !m.tgtSSL
				return m, nil
			}
		}
	}

	if i := m.inputIndex(m.focus); i >= 0 {
		var cmd tea.Cmd
		m.inputs[i], cmd = m.inputs[i].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m formModel) reloadFromEnv() (formModel, tea.Cmd) {
	if _, err := config.LoadEnvFile(); err != nil {
		m.notice, m.noticeErr = err.Error(), true
		return m, nil
	}
	s := config.FromEnv()
	s.Normalize()
	m.populate(&s)
	m.ssh = s.SSH
	m.srcSSL, m.tgtSSL = s.Source.SSL, s.Target.SSL
	m.notice, m.noticeErr = "Environment variables loaded!", false
	return m, nil
}

// settingsFromForm builds Settings from whatever is typed in right now.
func (m formModel) settingsFromForm() config.Settings {
	return config.Settings{
		Source: postgres.Profile{
			Host:     strings.TrimSpace(m.inputs[0].Value()),
			Port:     parsePort(m.inputs[1].Value()),
			Database: strings.TrimSpace(m.inputs[2].Value()),
			Username: strings.TrimSpace(m.inputs[3].Value()),
			Password: m.inputs[4].Value(),
			SSL:      m.srcSSL,
		},
		Target: postgres.Profile{
			Host:     strings.TrimSpace(m.inputs[5].Value()),
			Port:     parsePort(m.inputs[6].Value()),
			Database: strings.TrimSpace(m.inputs[7].Value()),
			Username: strings.TrimSpace(m.inputs[8].Value()),
			Password: m.inputs[9].Value(),
			SSL:      m.tgtSSL,
		},
		SSH: m.ssh,
	}
}

func parsePort(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 5432
	}
	return n
}

// testConnections probes the source first; the target test only runs after
// the source notice, so each side gets its own line.
func (m formModel) testConnections() tea.Cmd {
	s := m.settingsFromForm()
	return pingCmd("Source", s.Source, pingCmd("Target", s.Target, nil))
}

func pingCmd(side string, p postgres.Profile, next tea.Cmd) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return pingResult(side, postgres.Ping(ctx, p), next)
	}
}

// pingResult renders one side's outcome. A failure drops next: the target is
// not probed once the source is known to be unreachable.
func pingResult(side string, err error, next tea.Cmd) testResultMsg {
	if err != nil {
		return testResultMsg{text: fmt.Sprintf("✗ %s database connection failed: %v", side, err), err: true}
	}
	return testResultMsg{text: fmt.Sprintf("✓ %s database connection successful!", side), next: next}
}

func (m formModel) startClone() (formModel, tea.Cmd) {
	s := m.settingsFromForm()

	src := s.Source
	if src.Host == "" || src.Database == "" || src.Username == "" || src.Password == "" {
		m.notice, m.noticeErr = "Please fill in all source database fields", true
		return m, nil
	}
	tgt := s.Target
	if tgt.Host == "" || tgt.Database == "" || tgt.Username == "" || tgt.Password == "" {
		m.notice, m.noticeErr = "Please fill in all target database fields", true
		return m, nil
	}

	return m, func() tea.Msg { return startCloneMsg{settings: s} }
}

func (m formModel) view() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Database Clone Configuration"))
	b.WriteString("\n\n")

	srcCol := m.renderColumn("Source Database", 0, idxSrcSSL, m.srcSSL)
	tgtCol := m.renderColumn("Target Database", 5, idxTgtSSL, m.tgtSSL)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, srcCol, tgtCol))
	b.WriteString("\n")

	b.WriteString(m.renderButtons())
	b.WriteString("\n\n")

	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("tab/shift+tab move · space toggles SSL · enter activates · esc quits"))
	return b.String()
}

func (m formModel) renderColumn(label string, inputOffset, sslIdx int, ssl bool) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render(label))
	b.WriteString("\n")
	for i := inputOffset; i < inputOffset+5; i++ {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	box := "[ ]"
	if ssl {
		box = "[x]"
	}
	sslLine := box + " SSL Required"
	if m.focus == sslIdx {
		sslLine = focusedStyle.Render(sslLine)
	} else {
		sslLine = blurredStyle.Render(sslLine)
	}
	b.WriteString(sslLine)

	return columnStyle.Width(34).Render(b.String())
}

func (m formModel) renderButtons() string {
	buttons := []struct {
		idx   int
		label string
	}{
		{idxLoadEnv, "Load from .env"},
		{idxTest, "Test Connections"},
		{idxStart, "Start Clone"},
	}

	parts := make([]string, 0, len(buttons))
	for _, btn := range buttons {
		text := "[ " + btn.label + " ]"
		if m.focus == btn.idx {
			text = focusedStyle.Render(text)
		} else {
			text = blurredStyle.Render(text)
		}
		parts = append(parts, text)
	}
	return columnStyle.Render(strings.Join(parts, "  "))
}
