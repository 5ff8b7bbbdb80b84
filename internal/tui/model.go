package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfchat/internal/domain"
	"pdfchat/internal/service"
)

// NoRelevantContent is shown when retrieval finds nothing for a question.
const NoRelevantContent = "No relevant content found in the document for this question."

// openCommand loads a document typed as "/open <path>".
const openCommand = "/open"

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	IngestFile(ctx context.Context, path string) (service.IngestResult, error)
	Answer(ctx context.Context, question string, onToken func(string)) (string, error)
	Chat(ctx context.Context, message string, onToken func(string)) (string, error)
	Clear(ctx context.Context) bool
	Document() string
	Session() *domain.Session
	Warnings() []string
}

type tokenMsg string

type doneMsg struct {
	err      error
	warnings []string
}

type ingestedMsg struct {
	path     string
	result   service.IngestResult
	err      error
	warnings []string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx      context.Context
	service  ChatPort
	input    textinput.Model
	viewport viewport.Model
	chatType domain.ChatType
	status   string
	ready    bool

	stream   chan tea.Msg
	cancel   context.CancelFunc
	partial  string
	question string
	indexing bool
}

// New creates a chat model. It starts in document chat when a document is
// loaded and in simple chat otherwise.
func New(ctx context.Context, service ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	m := Model{ctx: ctx, service: service, input: ti, viewport: vp, chatType: domain.ChatSimple}
	if service.Document() != "" {
		m.chatType = domain.ChatDocument
		m.status = fmt.Sprintf("Loaded %s. Tab switches chat type.", service.Document())
	} else {
		m.status = "No document loaded. Type /open <path> to load one."
	}
	return m
}

// ChatType returns the active chat type.
func (m Model) ChatType() domain.ChatType { return m.chatType }

// Status returns the status bar text.
func (m Model) Status() string { return m.status }

// Streaming reports whether an answer is in flight.
func (m Model) Streaming() bool { return m.stream != nil }

// Indexing reports whether a document is being loaded.
func (m Model) Indexing() bool { return m.indexing }

func (m Model) busy() bool { return m.stream != nil || m.indexing }

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and streaming events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case tokenMsg:
		m.partial += string(msg)
		m.refresh()
		return m, waitFor(m.stream)

	case doneMsg:
		m.stopRequest()
		m.stream = nil
		m.partial = ""
		m.status = m.statusFor(msg.err, msg.warnings)
		m.refresh()
		return m, nil

	case ingestedMsg:
		m.indexing = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.chatType = domain.ChatDocument
		m.status = loadedStatus(msg.path, msg.result, msg.warnings)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.stopRequest()
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if !m.busy() {
				m.chatType = toggle(m.chatType)
				m.status = "Chat type: " + m.chatType.String()
				m.refresh()
			}
			return m, nil
		case "ctrl+l":
			if !m.busy() {
				m.service.Session().Reset(m.chatType)
				m.status = "Cleared " + m.chatType.String() + " history"
				m.refresh()
			}
			return m, nil
		case "ctrl+x":
			if !m.busy() {
				if m.service.Clear(m.ctx) {
					m.status = "Document cleared"
				} else {
					m.status = m.statusFor(nil, m.service.Warnings())
					if m.status == "" {
						m.status = "No document to clear"
					}
				}
				m.chatType = domain.ChatSimple
				m.refresh()
			}
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy() {
				return m, nil
			}
			m.input.SetValue("")
			if path, ok := strings.CutPrefix(q, openCommand); ok && (path == "" || path[0] == ' ') {
				return m.open(strings.TrimSpace(path))
			}
			ctx, cancel := context.WithCancel(m.ctx)
			m.cancel = cancel
			m.question = q
			m.status = "Thinking..."
			m.stream = make(chan tea.Msg)
			go m.ask(ctx, m.stream, m.chatType, q)
			m.refresh()
			return m, waitFor(m.stream)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// open indexes the document at path in the background.
func (m Model) open(path string) (tea.Model, tea.Cmd) {
	if path == "" {
		m.status = "Usage: /open <path>"
		return m, nil
	}
	m.indexing = true
	m.status = "Indexing " + path + "..."
	svc, ctx := m.service, m.ctx
	return m, func() tea.Msg {
		res, err := svc.IngestFile(ctx, path)
		return ingestedMsg{path: path, result: res, err: err, warnings: svc.Warnings()}
	}
}

// ask streams one reply into out. Sends give up once ctx is cancelled so the
// goroutine never outlives a quit.
func (m Model) ask(ctx context.Context, out chan<- tea.Msg, ct domain.ChatType, q string) {
	defer close(out)
	send := func(msg tea.Msg) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}
	onToken := func(tok string) { send(tokenMsg(tok)) }
	var err error
	if ct == domain.ChatDocument {
		_, err = m.service.Answer(ctx, q, onToken)
	} else {
		_, err = m.service.Chat(ctx, q, onToken)
	}
	send(doneMsg{err: err, warnings: m.service.Warnings()})
}

func (m *Model) stopRequest() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func loadedStatus(path string, res service.IngestResult, warnings []string) string {
	status := fmt.Sprintf("Loaded %s (%d chunks)", path, res.Chunks)
	if res.Skipped {
		status = fmt.Sprintf("Loaded %s (already indexed, %d chunks)", path, res.Chunks)
	}
	if res.Summary != "" {
		status += ". Summary: " + res.Summary
	}
	if len(warnings) > 0 {
		status += ". Warning: " + strings.Join(warnings, "; ")
	}
	return status
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) statusFor(err error, warnings []string) string {
	switch {
	case errors.Is(err, domain.ErrNoRelevantContent):
		return NoRelevantContent
	case errors.Is(err, domain.ErrNoDocument):
		return "No document loaded. Type /open <path> or press Tab for simple chat."
	case err != nil:
		return "Error: " + err.Error()
	case len(warnings) > 0:
		return "Warning: " + strings.Join(warnings, "; ")
	}
	return ""
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the header, transcript, input and status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "PDF Chat"
	if doc := m.service.Document(); doc != "" {
		title += " - " + doc
	}
	header := headerStyle.Render(title) + "  " + modeStyle.Render("["+m.chatType.String()+"]")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + transcript + "\n" + input + "\n" + statusStyle.Render(m.status)
}

func (m Model) renderTranscript() string {
	width := max(10, m.viewport.Width-4)
	body := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for _, msg := range m.service.Session().Messages(m.chatType) {
		b.WriteString(renderMessage(body, msg.Role, msg.Content))
	}
	if m.stream != nil && !endsWithQuestion(m.service.Session().Messages(m.chatType), m.question) {
		b.WriteString(renderMessage(body, domain.RoleUser, m.question))
	}
	if m.partial != "" {
		b.WriteString(renderMessage(body, domain.RoleAssistant, m.partial))
	}
	if b.Len() == 0 {
		return "No messages yet."
	}
	return b.String()
}

func renderMessage(body lipgloss.Style, role domain.Role, content string) string {
	label := assistantStyle.Render("Assistant:")
	if role == domain.RoleUser {
		label = userStyle.Render("You:")
	}
	return label + "\n" + body.Render(content) + "\n\n"
}

func endsWithQuestion(msgs []domain.Message, q string) bool {
	return len(msgs) > 0 && msgs[len(msgs)-1].Role == domain.RoleUser && msgs[len(msgs)-1].Content == q
}

func toggle(ct domain.ChatType) domain.ChatType {
	if ct == domain.ChatDocument {
		return domain.ChatSimple
	}
	return domain.ChatDocument
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	modeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
