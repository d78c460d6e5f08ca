// Package tui provides the terminal chat surface using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/aiko/internal/parser"
	"github.com/joss/aiko/internal/turn"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	aiStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// Messages delivered from the orchestrator listener goroutines.
type (
	streamMsg  struct{ text string }
	phaseMsg   struct{ phase turn.Phase }
	warningMsg struct{ text string }
	resultMsg  struct{ res parser.Result }
	errorMsg   struct{ err error }
)

// Model is the chat TUI model.
type Model struct {
	orch   *turn.Orchestrator
	notice string // persona greeting shown on start

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	events chan tea.Msg

	transcript strings.Builder
	streaming  string
	phase      turn.Phase
	busy       bool
	width      int
	height     int
	ready      bool
}

// New builds the chat model. Build the orchestrator with the returned
// listener, then hand it back with Attach before running the program.
func New(greeting string) (*Model, turn.Listener) {
	ti := textinput.New()
	ti.Placeholder = "和她说点什么…"
	ti.Focus()
	ti.CharLimit = 2000

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &Model{
		notice: greeting,
		input:  ti,
		spin:   s,
		events: make(chan tea.Msg, 256),
	}

	listener := turn.Listener{
		OnStream:  func(text string) { m.post(streamMsg{text}) },
		OnPhase:   func(p turn.Phase) { m.post(phaseMsg{p}) },
		OnWarning: func(msg string) { m.post(warningMsg{msg}) },
		OnResult:  func(res parser.Result) { m.post(resultMsg{res}) },
		OnError:   func(err error) { m.post(errorMsg{err}) },
	}
	return m, listener
}

// Attach gives the model its orchestrator once the listener is wired.
func Attach(m *Model, orch *turn.Orchestrator) {
	m.orch = orch
}

func (m *Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m *Model) Init() tea.Cmd {
	if m.notice != "" {
		m.transcript.WriteString(aiStyle.Render(m.notice) + "\n\n")
	}
	return tea.Batch(textinput.Blink, m.spin.Tick, m.waitEvent())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 5
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.orch == nil {
				return m, nil
			}
			m.input.SetValue("")
			m.transcript.WriteString(userStyle.Render("你：") + text + "\n")
			m.streaming = ""
			m.busy = true
			m.refresh()
			m.orch.Submit(context.Background(), text)
			return m, m.waitEvent()
		}

	case streamMsg:
		m.streaming = msg.text
		m.refresh()
		return m, m.waitEvent()

	case phaseMsg:
		m.phase = msg.phase
		if msg.phase == turn.PhaseDone || msg.phase == turn.PhaseAborted {
			m.busy = false
		}
		m.refresh()
		return m, m.waitEvent()

	case warningMsg:
		m.transcript.WriteString(warnStyle.Render("⚠ "+msg.text) + "\n")
		m.refresh()
		return m, m.waitEvent()

	case resultMsg:
		m.streaming = ""
		line := aiStyle.Render("她：") + msg.res.CleanText
		if msg.res.Emotion != parser.DefaultEmotion {
			line += helpStyle.Render(" (" + msg.res.Emotion + ")")
		}
		m.transcript.WriteString(line + "\n\n")
		if msg.res.ImageCommand != nil {
			m.transcript.WriteString(warnStyle.Render(
				fmt.Sprintf("（想为你生成图片：%s）", msg.res.ImageCommand.Prompt)) + "\n")
		}
		m.refresh()
		return m, m.waitEvent()

	case errorMsg:
		m.streaming = ""
		m.transcript.WriteString(errStyle.Render("出错了："+msg.err.Error()) + "\n")
		m.refresh()
		return m, m.waitEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content := m.transcript.String()
	if m.streaming != "" {
		content += aiStyle.Render("她：") + parser.Parse(m.streaming).CleanText
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	status := m.phase.String()
	if m.busy {
		status = m.spin.View() + " " + status
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("aiko") + "\n")
	b.WriteString(m.viewport.View() + "\n")
	b.WriteString(statusBarStyle.Width(m.width).Render(status) + "\n")
	b.WriteString(m.input.View())
	return b.String()
}

var _ tea.Model = (*Model)(nil)
