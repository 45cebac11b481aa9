package core

import (
	"github.com/bjarneo/dropchat/internal/protocol"
)

// MessageSender receives everything the channel learns from the server. The
// network layer calls it from its read goroutine; implementations hand the
// events over to the single event loop that owns the session.
type MessageSender interface {
	SendConnected(identity string)
	SendPeerJoined(identity string)
	SendPeerLeft(identity string)
	SendDirectory(peers []protocol.Peer)
	SendInboundMedia(media protocol.InboundMedia)
	SendError(err error)
	SendConnectionClosed(err error)
}
