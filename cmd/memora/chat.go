// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"memora/internal/orchestrator"
	"memora/internal/pipeline"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	sources []string
	time    time.Time
}

// Messages for tea updates
type (
	answerMsg struct{ result *pipeline.QueryResult }
	errMsg    struct{ err error }
)

// chatModel is the bubbletea model for the interactive chat.
type chatModel struct {
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	history   []chatMessage
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	orch *orchestrator.Orchestrator
}

func initChat(o *orchestrator.Orchestrator) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your notes... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.SetContent("")

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		renderer:  renderer,
		orch:      o,
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			query := strings.TrimSpace(m.textinput.Value())
			if query == "" {
				return m, nil
			}
			m.history = append(m.history, chatMessage{role: "user", content: query, time: time.Now()})
			m.textinput.Reset()
			m.isLoading = true
			m.err = nil
			m.refreshViewport()
			return m, tea.Batch(m.askCmd(query), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		m.textinput.Width = msg.Width - 4
		m.ready = true
		m.refreshViewport()

	case answerMsg:
		m.isLoading = false
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: msg.result.Answer,
			sources: sourceLines(msg.result),
			time:    time.Now(),
		})
		m.refreshViewport()
		m.viewport.GotoBottom()

	case errMsg:
		m.isLoading = false
		m.err = msg.err
		m.refreshViewport()

	case spinner.TickMsg:
		if m.isLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) View() string {
	if !m.ready {
		return "Starting memora..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("memora"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.isLoading {
		b.WriteString(m.spinner.View())
		b.WriteString(faintStyle.Render(" thinking..."))
	} else {
		b.WriteString(m.textinput.View())
	}
	b.WriteString("\n")
	return b.String()
}

// askCmd runs the pipeline off the UI goroutine.
func (m chatModel) askCmd(query string) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		result, err := orch.Pipeline().ProcessQuery(context.Background(), query, pipeline.Options{RoomID: roomID})
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{result}
	}
}

func (m *chatModel) refreshViewport() {
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case "user":
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(msg.content)
			b.WriteString("\n\n")
		case "assistant":
			b.WriteString(assistantStyle.Render("memora:"))
			b.WriteString("\n")
			b.WriteString(m.renderAnswer(msg.content))
			for _, src := range msg.sources {
				b.WriteString(faintStyle.Render("  " + src))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func (m *chatModel) renderAnswer(text string) string {
	if text == "" {
		return faintStyle.Render("(no answer)") + "\n"
	}
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(text); err == nil {
			return rendered
		}
	}
	return text + "\n"
}

func sourceLines(result *pipeline.QueryResult) []string {
	var lines []string
	for _, c := range result.Citations {
		lines = append(lines, fmt.Sprintf("[%d] %s", c.Index, c.Note.Title))
	}
	for _, r := range result.ExternalSources {
		lines = append(lines, fmt.Sprintf("ext: %s (%s)", r.Title, r.Source))
	}
	for _, n := range result.RelatedNotes {
		lines = append(lines, "see also: "+n.Title)
	}
	return lines
}

// runChat wires the orchestrator and hands control to bubbletea.
func runChat() error {
	o, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.Start(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(initChat(o), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
