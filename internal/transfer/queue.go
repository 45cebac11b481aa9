package transfer

import (
	"context"
	"sync"

	"github.com/bjarneo/dropchat/internal/core"
	"github.com/bjarneo/dropchat/internal/protocol"
)

var _ core.MessageSender = (*Queue)(nil)

// Queue serializes channel events onto one goroutine for headless use. It
// implements core.MessageSender; Run applies the events to a session in
// arrival order.
type Queue struct {
	events chan func(*Session)
	done   chan struct{}
	once   sync.Once
}

func NewQueue(size int) *Queue {
	return &Queue{
		events: make(chan func(*Session), size),
		done:   make(chan struct{}),
	}
}

// Do schedules fn on the loop. Once Run has returned, scheduled work is dropped.
func (q *Queue) Do(fn func(*Session)) {
	select {
	case q.events <- fn:
	case <-q.done:
	}
}

func (q *Queue) SendConnected(identity string) {
	q.Do(func(s *Session) { s.HandleConnected(identity) })
}

func (q *Queue) SendPeerJoined(identity string) {
	q.Do(func(s *Session) { s.HandlePeerJoined(identity) })
}

func (q *Queue) SendPeerLeft(identity string) {
	q.Do(func(s *Session) { s.HandlePeerLeft(identity) })
}

func (q *Queue) SendDirectory(peers []protocol.Peer) {
	q.Do(func(s *Session) { s.HandleDirectory(peers) })
}

func (q *Queue) SendInboundMedia(media protocol.InboundMedia) {
	q.Do(func(s *Session) { s.HandleInboundMedia(media) })
}

func (q *Queue) SendError(err error) {
	q.Do(func(s *Session) { s.HandleError(err) })
}

func (q *Queue) SendConnectionClosed(err error) {
	q.Do(func(s *Session) { s.HandleConnectionClosed(err) })
}

// Run applies queued work to s one item at a time. It returns when ctx is
// done, or nil as soon as stop (if given) reports true after an item.
func (q *Queue) Run(ctx context.Context, s *Session, stop func(*Session) bool) error {
	defer q.once.Do(func() { close(q.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-q.events:
			fn(s)
			if stop != nil && stop(s) {
				return nil
			}
		}
	}
}
