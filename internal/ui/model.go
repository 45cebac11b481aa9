package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/bjarneo/dropchat/internal/codec"
	"github.com/bjarneo/dropchat/internal/config"
	"github.com/bjarneo/dropchat/internal/network"
	"github.com/bjarneo/dropchat/internal/protocol"
	"github.com/bjarneo/dropchat/internal/transfer"
	"github.com/bjarneo/dropchat/internal/util"
)

const peersPaneWidth = 32

// Channel is the connection the model drives.
type Channel interface {
	transfer.Channel
	Open(ctx context.Context, identity string) error
	State() network.State
}

// Model is the main chat screen.
type Model struct {
	cfg      config.Config
	log      zerolog.Logger
	identity string
	channel  Channel
	session  *transfer.Session
	chatArea ChatAreaModel

	ctx    context.Context
	cancel context.CancelFunc

	width     int
	attachSeq int
	ShowHelp  bool
}

func NewModel(cfg config.Config, identity string, ch Channel, logger zerolog.Logger) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		cfg:      cfg,
		log:      logger,
		identity: identity,
		channel:  ch,
		session: transfer.NewSession(ch, transfer.Options{
			Mode:        cfg.DirectoryMode,
			MaxFileSize: cfg.MaxFileSize(),
			Logger:      logger,
		}),
		chatArea: NewChatAreaModel(80, 20, identity),
		ctx:      ctx,
		cancel:   cancel,
		width:    80,
	}
}

// Session exposes the state behind the screen.
func (m *Model) Session() *transfer.Session { return m.session }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return FocusTextareaMsg{} },
		m.openCmd(),
	)
}

func (m *Model) openCmd() tea.Cmd {
	ctx, identity, ch := m.ctx, m.identity, m.channel
	return func() tea.Msg {
		err := ch.Open(ctx, identity)
		var te *network.TransportError
		if err == nil || errors.As(err, &te) {
			// dial failures are already reported through the sender
			return nil
		}
		return ErrorMsg{Err: err}
	}
}

// attachCmd reads path off the loop. Each call supersedes the previous
// ones, whatever order the reads finish in.
func (m *Model) attachCmd(path string) tea.Cmd {
	m.attachSeq++
	ctx, limit, seq := m.ctx, m.cfg.MaxFileSize(), m.attachSeq
	return func() tea.Msg {
		att, err := codec.EncodeFile(ctx, path, limit)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return AttachmentReadyMsg{Seq: seq, Attachment: att}
	}
}

// sendCmd writes an upload off the loop; the result comes back as a
// SendResultMsg.
func (m *Model) sendCmd(u transfer.Upload) tea.Cmd {
	ch := m.channel
	return func() tea.Msg {
		return SendResultMsg{Upload: u, Err: ch.Emit(protocol.EventMediaUpload, u.Payload())}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC:
			return m, m.quit()
		case tea.KeyEsc:
			if m.ShowHelp {
				m.ShowHelp = false
				return m, nil
			}
			return m, m.quit()
		case tea.KeyTab:
			m.cycleRecipient()
			return m, nil
		}
	}

	var chatAreaCmd tea.Cmd
	m.chatArea, chatAreaCmd = m.chatArea.Update(msg)
	if chatAreaCmd != nil {
		cmds = append(cmds, chatAreaCmd)
	}

	switch msg := msg.(type) {
	case SubmitInputMsg:
		if cmd := m.runCommand(msg.Content); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		chatHeight := msg.Height - lipgloss.Height(m.headerView()) - lipgloss.Height(m.footerView())
		if chatHeight < 0 {
			chatHeight = 0
		}
		m.chatArea.SetDimensions(msg.Width-peersPaneWidth, chatHeight)

	case ConnectedMsg:
		m.session.HandleConnected(msg.Identity)
	case PeerJoinedMsg:
		m.session.HandlePeerJoined(msg.Identity)
	case PeerLeftMsg:
		m.session.HandlePeerLeft(msg.Identity)
	case DirectoryMsg:
		m.session.HandleDirectory(msg.Peers)
	case InboundMediaMsg:
		m.session.HandleInboundMedia(msg.Media)
	case AttachmentReadyMsg:
		if msg.Seq != m.attachSeq {
			m.log.Debug().Str("file", msg.Attachment.DisplayName).Msg("[ui] superseded attachment dropped")
			break
		}
		m.session.SetAttachment(msg.Attachment)
	case SendResultMsg:
		m.session.FinishSend(msg.Upload, msg.Err)
	case ConnectionClosedMsg:
		m.session.HandleConnectionClosed(msg.Err)
	case ErrorMsg:
		m.session.HandleError(msg.Err)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) runCommand(input string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/to":
		if arg == "" {
			m.session.ClearRecipient()
			m.session.Notify("Recipient cleared")
		} else if m.session.SelectRecipient(arg) {
			m.session.Notify("Sending to " + m.session.Recipient())
		} else {
			m.session.HandleError(fmt.Errorf("%s is not online", arg))
		}
	case "/clear":
		m.attachSeq++
		m.session.ClearAttachment()
	case "/attach":
		if arg == "" {
			m.session.HandleError(errors.New("usage: /attach <path>"))
			return nil
		}
		return m.attachCmd(arg)
	case "/send":
		return m.send()
	case "/save":
		n, err := strconv.Atoi(arg)
		if err != nil {
			m.session.HandleError(errors.New("usage: /save <n>"))
			return nil
		}
		_, _ = m.session.SaveTransfer(n, m.cfg.DownloadDir)
	case "/help":
		m.ShowHelp = !m.ShowHelp
	case "/quit":
		return m.quit()
	default:
		m.session.HandleError(fmt.Errorf("unknown command %q, type /help", name))
	}
	return nil
}

func (m *Model) send() tea.Cmd {
	if u, ok := m.session.BeginSend(); ok {
		return m.sendCmd(u)
	}
	switch {
	case m.session.Sending():
		m.session.HandleError(errors.New("an upload is still in progress"))
	case m.session.Pending() == nil:
		m.session.HandleError(errors.New("nothing to send, use /attach <path>"))
	case m.session.Recipient() == "":
		m.session.HandleError(errors.New("no recipient, use /to <name> or Tab"))
	case !m.session.Connected():
		m.session.HandleError(errors.New("not connected"))
	}
	return nil
}

func (m *Model) cycleRecipient() {
	if m.session.CycleRecipient() == "" {
		m.session.HandleError(errors.New("nobody else is online"))
	}
}

func (m *Model) quit() tea.Cmd {
	m.cancel()
	if err := m.session.Close(); err != nil {
		m.log.Warn().Err(err).Msg("[session] close")
	}
	return tea.Quit
}

func (m *Model) View() string {
	if m.ShowHelp {
		return m.helpView()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.chatArea.View(m.session.Entries()),
		m.peersView(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.footerView())
}

func (m *Model) helpView() string {
	return InfoBoxStyle.Padding(1, 2).Render(
		"Available Commands:\n" +
			"  /attach <path>  - Prepare a file to send\n" +
			"  /to <name>      - Choose the recipient (Tab cycles)\n" +
			"  /send           - Send the prepared file\n" +
			"  /clear          - Drop the prepared file\n" +
			"  /save <n>       - Save transfer #n to " + m.cfg.DownloadDir + "\n" +
			"  /help           - Toggle this help message\n" +
			"  /quit           - Disconnect and exit (Ctrl+C/Esc also works)\n" +
			"\n(Press Esc to close this help menu)",
	)
}

func (m *Model) headerView() string {
	status := fmt.Sprintf("dropchat | %s | %s | %d online",
		m.identity, strings.ToUpper(m.channel.State().String()), len(m.session.Peers()))
	return StatusStyle.Width(m.width).Render(status)
}

func (m *Model) peersView() string {
	peers := m.session.AvailableRecipients()
	if len(peers) == 0 {
		return PeersBoxStyle.Width(peersPaneWidth - 2).Render(SystemStyle.Render("Waiting for other users..."))
	}
	lines := make([]string, 0, len(peers))
	for _, p := range peers {
		label := util.SanitizeLabel(p.Identity, util.MaxIdentityLen)
		if p.Identity == m.session.Recipient() {
			lines = append(lines, SelectedStyle.Render("> "+label))
		} else {
			lines = append(lines, "  "+label)
		}
	}
	return PeersBoxStyle.Width(peersPaneWidth - 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	to := m.session.Recipient()
	if to == "" {
		to = "-"
	}
	file := "-"
	if p := m.session.Pending(); p != nil {
		file = fmt.Sprintf("%s %s (%s)", kindTag(p.MimeType), p.DisplayName, transfer.FormatSize(p.Size))
		if m.session.Sending() {
			file += " sending..."
		}
	}
	return StatusStyle.Render(fmt.Sprintf("to: %s | attachment: %s", to, file))
}
