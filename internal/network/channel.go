package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bjarneo/dropchat/internal/core"
	"github.com/bjarneo/dropchat/internal/protocol"
)

var (
	ErrAlreadyOpen  = errors.New("channel already open")
	ErrClosed       = errors.New("channel closed")
	ErrNotConnected = errors.New("channel not connected")
)

// TransportError reports a failed or dropped connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// State is the lifecycle position of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Config holds connection settings.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingInterval <= 0 disables keepalive pings and read deadlines.
	PingInterval time.Duration
	// ReadLimit caps the size of one inbound frame; <= 0 means no cap.
	ReadLimit int64
}

// ReadLimitFor derives a frame size cap from the attachment size limit. A
// numeric array payload spends up to four bytes per attachment byte.
func ReadLimitFor(maxFileSize int64) int64 {
	if maxFileSize <= 0 {
		return 0
	}
	return maxFileSize*4 + 64*1024
}

// Channel is the single logical connection to the messaging server.
type Channel struct {
	cfg    Config
	sender core.MessageSender
	log    zerolog.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	identity string
	done     chan struct{}

	writeMu sync.Mutex
}

// NewChannel creates a disconnected channel that reports to sender.
func NewChannel(cfg Config, sender core.MessageSender, logger zerolog.Logger) *Channel {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Channel{
		cfg:    cfg,
		sender: sender,
		log:    logger.With().Str("component", "channel").Logger(),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Connected() bool { return c.State() == StateConnected }

func (c *Channel) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Open dials the server and announces identity. Dial failures are reported
// to the sender as well as returned. Open blocks; run it off the event loop.
func (c *Channel) Open(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return errors.New("identity must not be empty")
	}

	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateConnected:
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.log.Debug().Str("url", c.cfg.URL).Str("identity", identity).Msg("[channel] dialing")
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.setStateIf(StateConnecting, StateDisconnected)
		terr := &TransportError{Op: "dial", Err: err}
		c.sender.SendError(terr)
		return terr
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.state = StateConnected
	c.conn = conn
	c.identity = identity
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}
	if c.cfg.PingInterval > 0 {
		pongWait := 3 * c.cfg.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	if err := c.emit(conn, protocol.EventJoin, protocol.JoinPayload{Identity: identity}); err != nil {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			if c.state == StateConnected {
				c.state = StateDisconnected
			}
		}
		c.mu.Unlock()
		_ = conn.Close()
		close(done)
		c.sender.SendError(err)
		return err
	}

	c.log.Info().Str("identity", identity).Msg("[channel] connected")
	c.sender.SendConnected(identity)

	go c.readLoop(conn, done)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, done)
	}
	return nil
}

// Emit sends one event to the server.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}
	return c.emit(conn, event, payload)
}

func (c *Channel) emit(conn *websocket.Conn, event string, payload any) error {
	frame, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// a failed write leaves the conn unusable; closing it lets the read
		// loop report the disconnect
		_ = conn.Close()
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Close tears the connection down for good. The read loop reports the
// disconnect to the sender once it notices.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.log.Debug().Msg("[channel] closing")
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteTimeout))
	return conn.Close()
}

func (c *Channel) setStateIf(from, to State) {
	c.mu.Lock()
	if c.state == from {
		c.state = to
	}
	c.mu.Unlock()
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	var readErr error
	defer func() {
		close(done)
		c.mu.Lock()
		voluntary := c.state == StateClosed
		if c.conn == conn {
			c.conn = nil
			if !voluntary {
				c.state = StateDisconnected
			}
		}
		c.mu.Unlock()
		_ = conn.Close()

		if voluntary || readErr == nil {
			c.log.Info().Msg("[channel] disconnected")
			c.sender.SendConnectionClosed(nil)
			return
		}
		c.log.Warn().Err(readErr).Msg("[channel] connection lost")
		c.sender.SendConnectionClosed(&TransportError{Op: "read", Err: readErr})
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			return
		}
		if c.cfg.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(3 * c.cfg.PingInterval))
		}
		c.dispatch(frame)
	}
}

func (c *Channel) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.log.Debug().Err(err).Msg("[channel] ping failed")
				return
			}
		}
	}
}

// dispatch decodes one frame and forwards it to the sender.
func (c *Channel) dispatch(frame []byte) {
	env, err := protocol.Unmarshal(frame)
	if err != nil {
		c.sender.SendError(&TransportError{Op: "decode", Err: err})
		return
	}

	switch env.Event {
	case protocol.EventPeerJoined, protocol.EventPeerLeft:
		identity, err := decodeIdentity(env.Data)
		if err != nil {
			c.sender.SendError(&TransportError{Op: "decode " + env.Event, Err: err})
			return
		}
		if env.Event == protocol.EventPeerJoined {
			c.sender.SendPeerJoined(identity)
		} else {
			c.sender.SendPeerLeft(identity)
		}

	case protocol.EventDirectory:
		peers, err := decodePeers(env.Data)
		if err != nil {
			c.sender.SendError(&TransportError{Op: "decode " + env.Event, Err: err})
			return
		}
		c.sender.SendDirectory(peers)

	case protocol.EventInboundMedia:
		var media protocol.InboundMedia
		if err := json.Unmarshal(env.Data, &media); err != nil {
			c.sender.SendError(&TransportError{Op: "decode " + env.Event, Err: err})
			return
		}
		c.sender.SendInboundMedia(media)

	case protocol.EventServerError:
		var serr protocol.ServerError
		if err := json.Unmarshal(env.Data, &serr); err != nil || serr.Message == "" {
			serr.Message = strings.TrimSpace(string(env.Data))
		}
		c.sender.SendError(fmt.Errorf("server error: %s", serr.Message))

	default:
		c.log.Debug().Str("event", env.Event).Msg("[channel] ignoring unknown event")
	}
}

// decodeIdentity accepts either {"username": "..."} or a bare string.
func decodeIdentity(raw json.RawMessage) (string, error) {
	var p protocol.PresencePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return "", err
		}
		p.Identity = s
	}
	if strings.TrimSpace(p.Identity) == "" {
		return "", errors.New("missing username")
	}
	return p.Identity, nil
}

// decodePeers accepts a list of peer objects or a list of bare identities.
func decodePeers(raw json.RawMessage) ([]protocol.Peer, error) {
	var peers []protocol.Peer
	err := json.Unmarshal(raw, &peers)
	if err == nil {
		return peers, nil
	}
	var names []string
	if json.Unmarshal(raw, &names) != nil {
		return nil, err
	}
	peers = make([]protocol.Peer, 0, len(names))
	for _, n := range names {
		peers = append(peers, protocol.Peer{Identity: n})
	}
	return peers, nil
}
