package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// --- Protocol Definition ---

// Event names exchanged with the messaging server.
const (
	EventJoin        = "user_join"
	EventMediaUpload = "media_upload"

	EventPeerJoined   = "user_joined"
	EventPeerLeft     = "user_left"
	EventDirectory    = "online_users"
	EventInboundMedia = "receive_media"
	EventServerError  = "error"
)

// Envelope wraps every frame on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Peer is one entry of a directory snapshot.
type Peer struct {
	Identity string `json:"username"`
	Handle   string `json:"socketId,omitempty"`
}

// JoinPayload announces the local identity.
type JoinPayload struct {
	Identity string `json:"username"`
}

// PresencePayload is carried by user_joined and user_left.
type PresencePayload struct {
	Identity string `json:"username"`
}

// MediaUpload is sent to deliver an attachment to one recipient.
// Buffer marshals as base64, the contiguous wire shape.
type MediaUpload struct {
	Buffer      []byte `json:"buffer"`
	Recipient   string `json:"targetUser"`
	MimeType    string `json:"mediaType"`
	DisplayName string `json:"filename"`
}

// InboundMedia is an attachment delivered by the server. Buffer is kept raw
// because senders marshal bytes in more than one shape.
type InboundMedia struct {
	Buffer      json.RawMessage `json:"buffer"`
	Sender      string          `json:"sender"`
	MimeType    string          `json:"mediaType"`
	DisplayName string          `json:"filename"`
}

// ServerError is an error reported by the server itself.
type ServerError struct {
	Message string `json:"message"`
}

// Marshal builds the JSON frame for an outgoing event. HTML escaping is
// disabled so display names survive untouched.
func Marshal(event string, payload any) ([]byte, error) {
	data, err := encode(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return encode(Envelope{Event: event, Data: data})
}

// Unmarshal splits a frame into its event name and raw payload.
func Unmarshal(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event name")
	}
	return env, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
