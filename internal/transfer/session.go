// Package transfer coordinates recipient selection, attachment preparation and
// sending, and applies server events to the session state.
package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjarneo/dropchat/internal/codec"
	"github.com/bjarneo/dropchat/internal/directory"
	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/protocol"
	"github.com/bjarneo/dropchat/internal/util"
)

// Channel is the part of the network channel a session drives.
type Channel interface {
	Emit(event string, payload any) error
	Connected() bool
	Close() error
}

type Options struct {
	Mode directory.Mode
	// MaxFileSize in bytes; <= 0 disables the limit.
	MaxFileSize int64
	Now         func() time.Time
	Logger      zerolog.Logger
}

// Session is the state of one joined identity. Every method must be called
// from the same event loop; none of them block on the network.
type Session struct {
	channel     Channel
	store       *codec.Store
	directory   *directory.Directory
	ledger      *ledger.Ledger
	log         zerolog.Logger
	now         func() time.Time
	maxFileSize int64

	identity     string
	recipient    string
	pending      *codec.PendingAttachment
	sending      bool
	disconnected bool
	closed       bool
}

func NewSession(ch Channel, opts Options) *Session {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		channel:     ch,
		store:       codec.NewStore(),
		directory:   directory.New(opts.Mode),
		ledger:      ledger.New(),
		log:         opts.Logger.With().Str("component", "session").Logger(),
		now:         now,
		maxFileSize: opts.MaxFileSize,
	}
}

func (s *Session) Identity() string  { return s.identity }
func (s *Session) Recipient() string { return s.recipient }
func (s *Session) Closed() bool      { return s.closed }

// Disconnected reports whether the connection-closed event has been applied
// since the last connect.
func (s *Session) Disconnected() bool { return s.disconnected }

// Sending reports whether an upload is in flight.
func (s *Session) Sending() bool { return s.sending }

// Connected reports whether the channel is open.
func (s *Session) Connected() bool {
	return s.channel != nil && s.channel.Connected()
}

// Pending returns the attachment waiting to be sent, or nil.
func (s *Session) Pending() *codec.PendingAttachment { return s.pending }

// Entries returns the feed in order.
func (s *Session) Entries() []ledger.Entry { return s.ledger.All() }

// Transfers returns only the transfer entries of the feed.
func (s *Session) Transfers() []ledger.Entry { return s.ledger.Transfers() }

// Observe calls fn for every entry appended to the feed from now on.
func (s *Session) Observe(fn func(ledger.Entry)) { s.ledger.Observe(fn) }

// Peers returns the latest directory snapshot, self included.
func (s *Session) Peers() []protocol.Peer { return s.directory.Peers() }

// AvailableRecipients returns the peers that can be selected.
func (s *Session) AvailableRecipients() []protocol.Peer {
	return s.directory.AvailableRecipients(s.identity)
}

// Preview looks up a live preview resource.
func (s *Session) Preview(h codec.Handle) (*codec.Resource, bool) {
	return s.store.Lookup(h)
}

// PreviewStats reports created and released preview counts.
func (s *Session) PreviewStats() (created, released int) { return s.store.Stats() }

// SelectRecipient selects identity if it is currently available. Otherwise
// nothing changes and the result is false.
func (s *Session) SelectRecipient(identity string) bool {
	identity = strings.TrimSpace(identity)
	if identity == "" || !s.isAvailable(identity) {
		return false
	}
	s.recipient = identity
	return true
}

func (s *Session) ClearRecipient() { s.recipient = "" }

// CycleRecipient selects the available peer after the current one, wrapping
// around, and returns it. It returns "" when nobody is available.
func (s *Session) CycleRecipient() string {
	peers := s.AvailableRecipients()
	if len(peers) == 0 {
		s.recipient = ""
		return ""
	}
	next := 0
	for i, p := range peers {
		if p.Identity == s.recipient {
			next = (i + 1) % len(peers)
			break
		}
	}
	s.recipient = peers[next].Identity
	return s.recipient
}

func (s *Session) isAvailable(identity string) bool {
	for _, p := range s.AvailableRecipients() {
		if p.Identity == identity {
			return true
		}
	}
	return false
}

// PrepareAttachment reads the file at path and makes it the pending
// attachment. Read failures become an error notice and are returned.
func (s *Session) PrepareAttachment(ctx context.Context, path string) error {
	att, err := codec.EncodeFile(ctx, path, s.maxFileSize)
	if err != nil {
		s.HandleError(err)
		return err
	}
	s.SetAttachment(att)
	return nil
}

// SetAttachment makes att the pending attachment, releasing the preview of
// any attachment it replaces.
func (s *Session) SetAttachment(att *codec.PendingAttachment) {
	if s.closed || att == nil {
		return
	}
	s.clearPending()
	att.Preview = s.store.MakePreview(att.Data, att.MimeType)
	s.pending = att
	s.log.Debug().Str("file", att.DisplayName).Int("bytes", att.Size).Msg("[session] attachment prepared")
}

// ClearAttachment drops the pending attachment without sending it.
func (s *Session) ClearAttachment() { s.clearPending() }

func (s *Session) clearPending() {
	if s.pending == nil {
		return
	}
	s.store.Release(s.pending.Preview)
	s.pending = nil
}

// CanSend reports whether Send would go through.
func (s *Session) CanSend() bool {
	return !s.closed && !s.sending && s.Connected() && s.pending != nil && strings.TrimSpace(s.recipient) != ""
}

// Upload is an outbound attachment handed off to the channel.
type Upload struct {
	Recipient  string
	Attachment *codec.PendingAttachment
}

// Payload is the media_upload frame for u.
func (u Upload) Payload() protocol.MediaUpload {
	return protocol.MediaUpload{
		Buffer:      u.Attachment.Data,
		Recipient:   u.Recipient,
		MimeType:    u.Attachment.MimeType,
		DisplayName: u.Attachment.DisplayName,
	}
}

// BeginSend claims the pending attachment for an upload. Until FinishSend
// is called no other send can start. The emit itself is left to the caller
// so it can run off the event loop.
func (s *Session) BeginSend() (Upload, bool) {
	if !s.CanSend() {
		return Upload{}, false
	}
	s.sending = true
	return Upload{Recipient: strings.TrimSpace(s.recipient), Attachment: s.pending}, true
}

// FinishSend applies the outcome of an upload started with BeginSend. On
// failure the attachment stays pending for a retry. On success the transfer
// is recorded and the attachment dropped, unless another one superseded it
// in the meantime.
func (s *Session) FinishSend(u Upload, err error) bool {
	s.sending = false
	att := u.Attachment
	if err != nil {
		s.HandleError(fmt.Errorf("send %s to %s: %w", att.DisplayName, display(u.Recipient), err))
		return false
	}

	res := codec.NewResource(att.Data, att.MimeType)
	var preview codec.Handle
	if !s.closed {
		preview = s.store.MakePreview(att.Data, att.MimeType)
	}
	s.ledger.Append(ledger.Transfer(s.now(), ledger.Outbound, display(u.Recipient), att.DisplayName, res, preview))
	s.log.Info().Str("to", u.Recipient).Str("file", att.DisplayName).Int("bytes", res.Size).Msg("[session] sent")

	s.store.Release(att.Preview)
	if s.pending == att {
		s.pending = nil
	}
	return true
}

// Send transmits the pending attachment to the selected recipient and waits
// for the write. It does nothing and returns false when the channel is
// closed, nothing is pending or no recipient is selected.
func (s *Session) Send() bool {
	u, ok := s.BeginSend()
	if !ok {
		return false
	}
	return s.FinishSend(u, s.channel.Emit(protocol.EventMediaUpload, u.Payload()))
}

// HandleConnected records the joined identity.
func (s *Session) HandleConnected(identity string) {
	s.identity = identity
	s.disconnected = false
	s.notice(ledger.CategoryInfo, fmt.Sprintf("Connected as %s", identity))
}

// HandlePeerJoined announces a new peer. The server echoing our own join is
// not announced.
func (s *Session) HandlePeerJoined(identity string) {
	if identity == s.identity {
		return
	}
	s.directory.Add(protocol.Peer{Identity: identity})
	s.notice(ledger.CategoryInfo, fmt.Sprintf("%s joined the chat", display(identity)))
}

// HandlePeerLeft announces a departed peer and drops it as recipient.
func (s *Session) HandlePeerLeft(identity string) {
	s.directory.Remove(identity)
	if s.recipient == identity {
		s.recipient = ""
	}
	s.notice(ledger.CategoryInfo, fmt.Sprintf("%s left the chat", display(identity)))
}

// HandleDirectory replaces the directory with a snapshot.
func (s *Session) HandleDirectory(peers []protocol.Peer) {
	s.directory.Replace(peers)
	if s.recipient != "" && !s.isAvailable(s.recipient) {
		s.recipient = ""
	}
}

// HandleInboundMedia decodes a received attachment into the feed. Payloads
// that cannot be decoded become an error notice.
func (s *Session) HandleInboundMedia(media protocol.InboundMedia) {
	sender := display(media.Sender)
	name := util.SanitizeFileName(media.DisplayName)

	res, err := codec.Decode(media.Buffer, media.MimeType)
	if err != nil {
		s.log.Warn().Err(err).Str("from", sender).Msg("[session] inbound media rejected")
		s.notice(ledger.CategoryError, fmt.Sprintf("Could not decode %s from %s: %v", name, sender, err))
		return
	}

	var preview codec.Handle
	if !s.closed {
		preview = s.store.MakePreview(res.Data, res.MimeType)
	}
	s.ledger.Append(ledger.Transfer(s.now(), ledger.Inbound, sender, name, res, preview))
	s.log.Info().Str("from", sender).Str("file", name).Int("bytes", res.Size).Msg("[session] received")
}

// Notify records an informational notice.
func (s *Session) Notify(text string) { s.notice(ledger.CategoryInfo, text) }

// HandleError records err as an error notice.
func (s *Session) HandleError(err error) {
	if err == nil {
		return
	}
	s.notice(ledger.CategoryError, err.Error())
}

// HandleConnectionClosed records a disconnect. A non-nil err is the transport
// failure that caused it.
func (s *Session) HandleConnectionClosed(err error) {
	if err != nil {
		s.notice(ledger.CategoryError, err.Error())
	}
	s.directory.Replace(nil)
	s.recipient = ""
	s.disconnected = true
	s.notice(ledger.CategoryInfo, "Disconnected from server")
}

// Close releases every preview this session created and closes the channel.
// Calling it again does nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.clearPending()
	for _, e := range s.ledger.Transfers() {
		s.store.Release(e.Preview)
	}
	created, released := s.store.Stats()
	s.log.Debug().Int("created", created).Int("released", released).Msg("[session] previews released")

	if s.channel == nil {
		return nil
	}
	return s.channel.Close()
}

func (s *Session) notice(category ledger.Category, text string) {
	s.ledger.Append(ledger.Notice(s.now(), category, text))
}

func display(identity string) string {
	if d := util.SanitizeLabel(identity, util.MaxIdentityLen); d != "" {
		return d
	}
	return "unknown"
}
