package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjarneo/dropchat/internal/protocol"
)

type event struct {
	kind     string
	identity string
	peers    []protocol.Peer
	media    protocol.InboundMedia
	err      error
}

type recorder struct {
	events chan event
}

func newRecorder() *recorder { return &recorder{events: make(chan event, 64)} }

func (r *recorder) SendConnected(identity string) {
	r.events <- event{kind: "connected", identity: identity}
}
func (r *recorder) SendPeerJoined(identity string) {
	r.events <- event{kind: "joined", identity: identity}
}
func (r *recorder) SendPeerLeft(identity string) {
	r.events <- event{kind: "left", identity: identity}
}
func (r *recorder) SendDirectory(peers []protocol.Peer) {
	r.events <- event{kind: "directory", peers: peers}
}
func (r *recorder) SendInboundMedia(media protocol.InboundMedia) {
	r.events <- event{kind: "media", media: media}
}
func (r *recorder) SendError(err error) { r.events <- event{kind: "error", err: err} }
func (r *recorder) SendConnectionClosed(err error) {
	r.events <- event{kind: "closed", err: err}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel event")
		return event{}
	}
}

// fakeServer is a minimal messaging server that hands every accepted
// websocket to the test.
type fakeServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		fs.conns <- conn
	})
	fs.srv = httptest.NewServer(r)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws"
}

func (fs *fakeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client connection")
		return nil
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Unmarshal(frame)
	require.NoError(t, err)
	return env
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string, data string) {
	t.Helper()
	frame := `{"event":"` + event + `","data":` + data + `}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func openChannel(t *testing.T) (*Channel, *recorder, *websocket.Conn) {
	t.Helper()
	fs := newFakeServer(t)
	rec := newRecorder()
	ch := NewChannel(Config{URL: fs.url(), HandshakeTimeout: 5 * time.Second}, rec, zerolog.Nop())
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.Open(context.Background(), "  me  "))
	conn := fs.accept(t)

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.EventJoin, env.Event)
	assert.JSONEq(t, `{"username":"me"}`, string(env.Data))

	ev := rec.next(t)
	require.Equal(t, "connected", ev.kind)
	assert.Equal(t, "me", ev.identity)
	return ch, rec, conn
}

func TestOpenAnnouncesIdentity(t *testing.T) {
	ch, _, _ := openChannel(t)

	assert.Equal(t, StateConnected, ch.State())
	assert.True(t, ch.Connected())
	assert.Equal(t, "me", ch.Identity())
	assert.ErrorIs(t, ch.Open(context.Background(), "me"), ErrAlreadyOpen)
}

func TestOpenRejectsEmptyIdentity(t *testing.T) {
	ch := NewChannel(Config{URL: "ws://127.0.0.1:1/ws"}, newRecorder(), zerolog.Nop())
	assert.Error(t, ch.Open(context.Background(), "   "))
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestInboundEventsKeepArrivalOrder(t *testing.T) {
	_, rec, conn := openChannel(t)

	writeEvent(t, conn, protocol.EventPeerJoined, `{"username":"Alice"}`)
	writeEvent(t, conn, protocol.EventDirectory, `[{"username":"me","socketId":"1"},{"username":"Alice","socketId":"2"}]`)
	writeEvent(t, conn, protocol.EventInboundMedia, `{"buffer":[1,2,3],"sender":"Alice","mediaType":"image/png","filename":"a.png"}`)
	writeEvent(t, conn, "typing", `{}`)
	writeEvent(t, conn, protocol.EventPeerLeft, `"Alice"`)
	writeEvent(t, conn, protocol.EventServerError, `{"message":"user not found"}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	writeEvent(t, conn, protocol.EventDirectory, `["Bob"]`)

	ev := rec.next(t)
	assert.Equal(t, event{kind: "joined", identity: "Alice"}, ev)

	ev = rec.next(t)
	require.Equal(t, "directory", ev.kind)
	assert.Equal(t, []protocol.Peer{{Identity: "me", Handle: "1"}, {Identity: "Alice", Handle: "2"}}, ev.peers)

	ev = rec.next(t)
	require.Equal(t, "media", ev.kind)
	assert.Equal(t, "Alice", ev.media.Sender)
	assert.Equal(t, "a.png", ev.media.DisplayName)
	assert.JSONEq(t, `[1,2,3]`, string(ev.media.Buffer))

	ev = rec.next(t)
	assert.Equal(t, event{kind: "left", identity: "Alice"}, ev)

	ev = rec.next(t)
	require.Equal(t, "error", ev.kind)
	assert.Contains(t, ev.err.Error(), "user not found")

	ev = rec.next(t)
	require.Equal(t, "error", ev.kind)
	var terr *TransportError
	assert.ErrorAs(t, ev.err, &terr)

	ev = rec.next(t)
	require.Equal(t, "directory", ev.kind)
	assert.Equal(t, []protocol.Peer{{Identity: "Bob"}}, ev.peers)
}

func TestMalformedPresenceIsReported(t *testing.T) {
	_, rec, conn := openChannel(t)

	writeEvent(t, conn, protocol.EventPeerJoined, `{"username":""}`)
	writeEvent(t, conn, protocol.EventInboundMedia, `"nope"`)

	for i := 0; i < 2; i++ {
		ev := rec.next(t)
		require.Equal(t, "error", ev.kind)
		var terr *TransportError
		assert.ErrorAs(t, ev.err, &terr)
	}
}

func TestEmitMediaUpload(t *testing.T) {
	ch, _, conn := openChannel(t)

	require.NoError(t, ch.Emit(protocol.EventMediaUpload, protocol.MediaUpload{
		Buffer:      []byte{1, 2, 255},
		Recipient:   "Alice",
		MimeType:    "image/png",
		DisplayName: "a.png",
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.EventMediaUpload, env.Event)
	var upload protocol.MediaUpload
	require.NoError(t, json.Unmarshal(env.Data, &upload))
	assert.Equal(t, []byte{1, 2, 255}, upload.Buffer)
	assert.Equal(t, "Alice", upload.Recipient)
}

func TestServerDropIsTransportError(t *testing.T) {
	ch, rec, conn := openChannel(t)

	require.NoError(t, conn.UnderlyingConn().Close())

	ev := rec.next(t)
	require.Equal(t, "closed", ev.kind)
	var terr *TransportError
	require.ErrorAs(t, ev.err, &terr)
	assert.Equal(t, "read", terr.Op)

	assert.Equal(t, StateDisconnected, ch.State())
	assert.ErrorIs(t, ch.Emit(protocol.EventJoin, protocol.JoinPayload{Identity: "me"}), ErrNotConnected)
}

func TestServerNormalCloseIsClean(t *testing.T) {
	ch, rec, conn := openChannel(t)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	ev := rec.next(t)
	require.Equal(t, "closed", ev.kind)
	assert.NoError(t, ev.err)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestCloseIsTerminal(t *testing.T) {
	ch, rec, _ := openChannel(t)

	require.NoError(t, ch.Close())
	ev := rec.next(t)
	require.Equal(t, "closed", ev.kind)
	assert.NoError(t, ev.err)

	assert.Equal(t, StateClosed, ch.State())
	assert.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Open(context.Background(), "me"), ErrClosed)
}

func TestDialFailure(t *testing.T) {
	fs := newFakeServer(t)
	url := fs.url()
	fs.srv.Close()

	rec := newRecorder()
	ch := NewChannel(Config{URL: url, HandshakeTimeout: time.Second}, rec, zerolog.Nop())

	err := ch.Open(context.Background(), "me")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "dial", terr.Op)

	ev := rec.next(t)
	assert.Equal(t, "error", ev.kind)
	assert.Equal(t, StateDisconnected, ch.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
}

func TestWriteTimeoutDisconnects(t *testing.T) {
	fs := newFakeServer(t)
	rec := newRecorder()
	ch := NewChannel(Config{URL: fs.url(), HandshakeTimeout: 5 * time.Second, WriteTimeout: 200 * time.Millisecond}, rec, zerolog.Nop())
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.Open(context.Background(), "me"))
	conn := fs.accept(t)
	readEnvelope(t, conn)
	require.Equal(t, "connected", rec.next(t).kind)

	// the server stops reading, so a large frame cannot be flushed in time
	err := ch.Emit(protocol.EventMediaUpload, protocol.MediaUpload{
		Buffer:    make([]byte, 32<<20),
		Recipient: "Alice",
	})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "write", terr.Op)

	ev := rec.next(t)
	require.Equal(t, "closed", ev.kind)
	require.ErrorAs(t, ev.err, &terr)
	assert.Equal(t, StateDisconnected, ch.State())
	assert.ErrorIs(t, ch.Emit(protocol.EventJoin, protocol.JoinPayload{Identity: "me"}), ErrNotConnected)
}
