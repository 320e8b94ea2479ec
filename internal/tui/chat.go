// Package tui is a terminal front-end over a conversation session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"

	"github.com/Skufu/pillscope/internal/conversation"
	"github.com/Skufu/pillscope/internal/medicine"
)

const (
	// DefaultViewportWidth is the chat viewport width before the first resize.
	DefaultViewportWidth = 80
	// DefaultViewportHeight is the chat viewport height before the first resize.
	DefaultViewportHeight = 20

	minMarkdownWidth = 20
	newlineChar      = "\n"

	title    = "AI Medicine Analyzer"
	subtitle = "Ask me about any medicine and I'll break it down for you."
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true).Padding(0, 1)
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Italic(true)
	labelStyle    = lipgloss.NewStyle().Bold(true)
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ChatModel renders one conversation.Session. The session owns all state; the
// model only keeps widgets and the window size.
type ChatModel struct {
	session  *conversation.Session
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool
}

// NewChatModel builds a model over s.
func NewChatModel(s *conversation.Session) (*ChatModel, error) {
	if s == nil {
		return nil, errors.New("tui: nil session")
	}

	vp := viewport.New(DefaultViewportWidth, DefaultViewportHeight)
	vp.SetContent("")

	ta := textarea.New()
	ta.Placeholder = "Enter medicine name... (Enter to send, Alt+Enter for new line, Ctrl+C to quit)"
	ta.Focus()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "shift+enter")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return &ChatModel{
		session:  s,
		viewport: vp,
		textarea: ta,
		spinner:  sp,
	}, nil
}

// Init starts the cursor blink and the spinner.
func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m *ChatModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := lipgloss.Height(m.headerView())
	footerHeight := lipgloss.Height(m.footerView())
	vpHeight := msg.Height - headerHeight - footerHeight - 4 // -4 for textarea
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.viewport.YPosition = headerHeight + 1
		m.textarea.SetHeight(3)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(msg.Width - 4)

	m.updateViewportContent()
}

// Update handles messages and updates the model state.
func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)
		return m, nil

	case tea.KeyMsg:
		if handled, keyCmd := m.handleKeyMsg(msg); handled {
			return m, keyCmd
		}

	case sendMessageMsg:
		return m, m.handleSendMessage(string(msg))

	case turnDoneMsg:
		m.updateViewportContent()
		return m, nil

	case spinner.TickMsg:
		if m.session.Thinking() {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if !m.session.Thinking() {
		before := m.textarea.Value()
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
		if after := m.textarea.Value(); after != before {
			m.session.SetInput(after)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *ChatModel) handleSendMessage(text string) tea.Cmd {
	done, err := m.session.Submit(context.Background(), text)
	if err != nil {
		// Empty or concurrent submissions change nothing.
		return nil
	}
	m.textarea.Reset()
	m.updateViewportContent()
	return tea.Batch(m.spinner.Tick, waitForTurn(done))
}

// View renders the landing screen until the first submission, then the chat.
func (m *ChatModel) View() string {
	if !m.ready {
		return "\n  Initializing " + title + "..."
	}
	if m.session.Snapshot().Phase == conversation.PhaseLanding {
		return m.landingView()
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m *ChatModel) landingView() string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		"💊",
		titleStyle.Render(title),
		subtitleStyle.Render(subtitle),
		"",
		m.textarea.View(),
		helpStyle.Render("Enter: Analyze | Ctrl+C: Quit"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *ChatModel) headerView() string {
	return titleStyle.Render("💊 " + title)
}

func (m *ChatModel) footerView() string {
	var content string
	if m.session.Thinking() {
		content = fmt.Sprintf("%s Thinking...", m.spinner.View())
	} else {
		help := helpStyle.Render("Enter: Send | Alt+Enter: New line | Ctrl+C: Quit")
		content = fmt.Sprintf("%s\n%s", m.textarea.View(), help)
	}

	return lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(1, 0).
		Render(content)
}

func (m *ChatModel) updateViewportContent() {
	snap := m.session.Snapshot()
	parts := make([]string, 0, len(snap.Messages)*3)

	for _, msg := range snap.Messages {
		stamp := timeStyle.Render(msg.CreatedAt.Format("15:04"))
		var header, body string

		switch msg.Kind {
		case conversation.KindInput:
			header = userStyle.Render("You:")
			body = m.plain(msg.Text)
		case conversation.KindMedicine:
			header = botStyle.Render("Analyzer:")
			body = m.renderSections(msg.Sections())
		case conversation.KindError:
			header = errorStyle.Render("Analyzer:")
			body = errorStyle.PaddingLeft(2).Render(msg.Text)
		default:
			header = botStyle.Render("Analyzer:")
			body = m.renderMarkdown(msg.Text)
		}

		parts = append(parts, header+" "+stamp, body, "")
	}

	m.viewport.SetContent(strings.Join(parts, newlineChar))
	m.viewport.GotoBottom()
}

func (m *ChatModel) contentWidth() int {
	width := m.viewport.Width - 4
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}
	return width
}

func (m *ChatModel) plain(text string) string {
	return lipgloss.NewStyle().PaddingLeft(2).Width(m.contentWidth()).Render(text)
}

func (m *ChatModel) renderSections(sections []medicine.Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		blocks = append(blocks, m.plain(labelStyle.Render(s.Label+":")+newlineChar+s.Body))
	}
	return strings.Join(blocks, newlineChar+newlineChar)
}

// renderMarkdown renders reply text with glamour, falling back to plain text.
func (m *ChatModel) renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.contentWidth()),
	)
	if err != nil {
		return m.plain(content)
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return m.plain(content)
	}

	lines := strings.Split(rendered, newlineChar)
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.TrimRight(strings.Join(lines, newlineChar), newlineChar+" ")
}

type sendMessageMsg string

type turnDoneMsg struct{}

func sendMessage(content string) tea.Cmd {
	return func() tea.Msg {
		return sendMessageMsg(content)
	}
}

func waitForTurn(done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return turnDoneMsg{}
	}
}

// Run starts the chat program and closes the session when it exits.
func Run(s *conversation.Session) error {
	model, err := NewChatModel(s)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run chat")
	}
	return nil
}
