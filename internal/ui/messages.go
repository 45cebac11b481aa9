package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bjarneo/dropchat/internal/codec"
	"github.com/bjarneo/dropchat/internal/core"
	"github.com/bjarneo/dropchat/internal/protocol"
	"github.com/bjarneo/dropchat/internal/transfer"
)

// --- Bubbletea Messages ---

type (
	ConnectedMsg        struct{ Identity string }
	PeerJoinedMsg       struct{ Identity string }
	PeerLeftMsg         struct{ Identity string }
	DirectoryMsg        struct{ Peers []protocol.Peer }
	InboundMediaMsg     struct{ Media protocol.InboundMedia }
	ConnectionClosedMsg struct{ Err error }
	ErrorMsg            struct{ Err error }

	// AttachmentReadyMsg carries a file read by /attach. Seq orders the
	// requests; only the latest one may become the pending attachment.
	AttachmentReadyMsg struct {
		Seq        int
		Attachment *codec.PendingAttachment
	}
	// SendResultMsg reports the outcome of an upload written off the loop.
	SendResultMsg struct {
		Upload transfer.Upload
		Err    error
	}
)

// programMessageSender forwards channel events into the bubbletea loop.
type programMessageSender struct {
	program *tea.Program
}

var _ core.MessageSender = (*programMessageSender)(nil)

func (pms *programMessageSender) SendConnected(identity string) {
	pms.program.Send(ConnectedMsg{Identity: identity})
}

func (pms *programMessageSender) SendPeerJoined(identity string) {
	pms.program.Send(PeerJoinedMsg{Identity: identity})
}

func (pms *programMessageSender) SendPeerLeft(identity string) {
	pms.program.Send(PeerLeftMsg{Identity: identity})
}

func (pms *programMessageSender) SendDirectory(peers []protocol.Peer) {
	pms.program.Send(DirectoryMsg{Peers: peers})
}

func (pms *programMessageSender) SendInboundMedia(media protocol.InboundMedia) {
	pms.program.Send(InboundMediaMsg{Media: media})
}

func (pms *programMessageSender) SendError(err error) {
	pms.program.Send(ErrorMsg{Err: err})
}

func (pms *programMessageSender) SendConnectionClosed(err error) {
	pms.program.Send(ConnectionClosedMsg{Err: err})
}
