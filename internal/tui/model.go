package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	Greeting  = "Hello! How can I help you with your loan inquiry today?"
	ErrorText = "Sorry, something went wrong. Please try again."

	defaultTimeout = 90 * time.Second
)

// Chatter is the TUI-facing subset of the API client.
type Chatter interface {
	Chat(ctx context.Context, q string) (string, error)
}

type Sender int

const (
	SenderBot Sender = iota
	SenderUser
)

// Message is one bubble in the conversation.
type Message struct {
	From  Sender
	Text  string
	Error bool
}

type answerMsg struct {
	text string
	err  error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client   Chatter
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	messages []Message
	loading  bool
	ready    bool
}

// New creates a chat model that sends questions through client.
func New(client Chatter) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your loan..."
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		client:   client,
		timeout:  defaultTimeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		messages: []Message{{From: SenderBot, Text: Greeting}},
	}
}

// Messages returns the conversation so far.
func (m Model) Messages() []Message { return m.messages }

// Loading reports whether a question is in flight.
func (m Model) Loading() bool { return m.loading }

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := inputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-fh-3) // header, input line, status
		m.input.Width = max(10, msg.Width-fh-4)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.loading {
				return m, nil
			}
			m.messages = append(m.messages, Message{From: SenderUser, Text: q})
			m.input.Reset()
			m.loading = true
			m.refresh()
			return m, m.ask(q)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case answerMsg:
		m.loading = false
		if msg.err != nil {
			m.messages = append(m.messages, Message{From: SenderBot, Text: ErrorText, Error: true})
		} else {
			m.messages = append(m.messages, Message{From: SenderBot, Text: msg.text})
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	client, timeout := m.client, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		text, err := client.Chat(ctx, q)
		return answerMsg{text: text, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("LoanAssist")
	status := statusStyle.Render("enter: send  pgup/pgdn: scroll  esc: quit")
	if m.loading {
		status = statusStyle.Render("Thinking...")
	}
	return header + "\n" + m.viewport.View() + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderMessages() string {
	width := max(10, m.viewport.Width-4)
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case msg.From == SenderUser:
			b.WriteString(userStyle.Width(width).Render("You: " + msg.Text))
		case msg.Error:
			b.WriteString(errorStyle.Width(width).Render("Bot: " + msg.Text))
		default:
			b.WriteString(botStyle.Width(width).Render("Bot: " + msg.Text))
		}
	}
	return b.String()
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Align(lipgloss.Right)
	botStyle      = lipgloss.NewStyle()
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
