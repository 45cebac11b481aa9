package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bjarneo/dropchat/internal/codec"
	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/transfer"
)

// SubmitInputMsg signals text was submitted from the textarea.
type SubmitInputMsg struct{ Content string }

// FocusTextareaMsg commands the ChatAreaModel to focus its textarea.
type FocusTextareaMsg struct{}

// ChatAreaModel shows the feed and the command input below it.
type ChatAreaModel struct {
	viewport      viewport.Model
	textarea      textarea.Model
	width         int
	height        int
	viewportStyle lipgloss.Style
	inputStyle    lipgloss.Style

	identity string
}

func NewChatAreaModel(initialWidth, initialHeight int, identity string) ChatAreaModel {
	ta := textarea.New()
	ta.Placeholder = "/attach <file>, /to <name>, /send, /help"
	ta.CharLimit = 0
	ta.SetWidth(initialWidth)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	ta.Prompt = identity + "> "
	ta.FocusedStyle.Prompt = PromptStyle
	ta.BlurredStyle.Prompt = PromptStyle

	return ChatAreaModel{
		textarea: ta,
		viewport: viewport.New(initialWidth, initialHeight-3),
		width:    initialWidth,
		height:   initialHeight,
		identity: identity,
	}
}

func (m ChatAreaModel) Init() tea.Cmd {
	return nil
}

func (m ChatAreaModel) Update(msg tea.Msg) (ChatAreaModel, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds := []tea.Cmd{tiCmd, vpCmd}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			input := strings.TrimSpace(m.textarea.Value())
			if input != "" {
				m.textarea.Reset()
				return m, func() tea.Msg { return SubmitInputMsg{Content: input} }
			}
		}
	case FocusTextareaMsg:
		cmds = append(cmds, m.textarea.Focus())
	}

	return m, tea.Batch(cmds...)
}

// SetDimensions resizes the viewport and input to fill width x height.
func (m *ChatAreaModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height

	inputHeight := m.inputHeight()
	vpHeight := height - inputHeight
	if vpHeight < 0 {
		vpHeight = 0
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(width - 4)
}

func (m *ChatAreaModel) inputHeight() int {
	h := m.textarea.Height() + 2
	if h < 3 {
		h = 3
	}
	if h > m.height {
		h = m.height
	}
	return h
}

// View renders entries above the input.
func (m *ChatAreaModel) View(entries []ledger.Entry) string {
	m.viewportStyle = lipgloss.NewStyle().
		Width(m.width).
		Height(m.viewport.Height).
		Border(lipgloss.NormalBorder(), true, true, false, true).
		PaddingLeft(1).
		PaddingRight(1)
	m.inputStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true).
		Width(m.width).
		Height(m.inputHeight()).
		PaddingLeft(1).
		PaddingRight(1)

	m.viewport.SetContent(m.renderEntries(entries))
	m.viewport.GotoBottom()

	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewportStyle.Render(m.viewport.View()),
		m.inputStyle.Render(m.textarea.View()),
	)
}

func (m *ChatAreaModel) renderEntries(entries []ledger.Entry) string {
	contentWidth := m.width - m.viewportStyle.GetHorizontalBorderSize() - m.viewportStyle.GetHorizontalPadding()
	if contentWidth < 1 {
		contentWidth = 1
	}

	var lines []string
	n := 0
	for _, e := range entries {
		ts := TimestampStyle.Render(e.CreatedAt.Format("15:04"))

		var prefix, content string
		if e.Kind == ledger.KindNotice {
			prefix = ts + " --- "
			if e.Category == ledger.CategoryError {
				content = ErrorStyle.Render(e.Text)
			} else {
				content = SystemStyle.Render(e.Text)
			}
		} else {
			n++
			prefix = fmt.Sprintf("%s %s ", ts, m.transferLabel(e))
			content = describeTransfer(n, e)
		}

		prefixLen := lipgloss.Width(prefix)
		maxContent := contentWidth - prefixLen
		if maxContent < 1 {
			maxContent = 1
		}
		rendered := strings.Split(lipgloss.NewStyle().Width(maxContent).Render(content), "\n")
		lines = append(lines, prefix+rendered[0])
		indent := strings.Repeat(" ", prefixLen)
		for _, l := range rendered[1:] {
			lines = append(lines, indent+l)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *ChatAreaModel) transferLabel(e ledger.Entry) string {
	if e.Direction == ledger.Outbound {
		return SenderStyle.Render("<" + m.identity + "> -> " + e.Counterpart)
	}
	return ReceiverStyle.Render("<" + e.Counterpart + ">")
}

func describeTransfer(n int, e ledger.Entry) string {
	s := fmt.Sprintf("#%d %s %s (%s) %s", n, kindTag(e.MimeType), e.DisplayName, transfer.FormatSize(e.ByteLength), e.Fingerprint)
	if e.Preview != "" {
		s += " " + string(e.Preview)
	}
	return s
}

func kindTag(mimeType string) string {
	switch codec.KindOf(mimeType) {
	case codec.KindImage:
		return "[image]"
	case codec.KindVideo:
		return "[video]"
	case codec.KindAudio:
		return "[audio]"
	case codec.KindDocument:
		return "[pdf]"
	default:
		return "[file]"
	}
}
