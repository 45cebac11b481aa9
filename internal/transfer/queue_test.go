package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjarneo/dropchat/internal/protocol"
)

func TestQueueAppliesEventsInOrder(t *testing.T) {
	q := NewQueue(16)
	s := NewSession(&fakeChannel{connected: true}, Options{Logger: zerolog.Nop()})

	q.SendConnected("me")
	q.SendDirectory([]protocol.Peer{{Identity: "me"}, {Identity: "Alice"}})
	q.SendPeerJoined("Bob")
	q.SendError(errors.New("boom"))
	q.SendPeerLeft("Bob")
	q.SendConnectionClosed(nil)

	applied := 0
	err := q.Run(context.Background(), s, func(*Session) bool {
		applied++
		return applied == 6
	})
	require.NoError(t, err)

	var texts []string
	for _, e := range s.Entries() {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{
		"Connected as me",
		"Bob joined the chat",
		"boom",
		"Bob left the chat",
		"Disconnected from server",
	}, texts)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue(0)
	s := NewSession(nil, Options{Logger: zerolog.Nop()})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.Run(ctx, s, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan struct{})
	go func() {
		q.SendPeerJoined("late")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Do blocked after Run returned")
	}
}
