// Package ledger holds the ordered log of notices and transfers shown in the feed.
package ledger

import (
	"time"

	"github.com/bjarneo/dropchat/internal/codec"
)

type Kind int

const (
	KindNotice Kind = iota
	KindTransfer
)

type Category int

const (
	CategoryInfo Category = iota
	CategoryError
)

type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Entry is one line of the feed. Notice entries use Category and Text;
// transfer entries use the remaining fields.
type Entry struct {
	Kind      Kind
	CreatedAt time.Time

	Category Category
	Text     string

	Direction   Direction
	Counterpart string
	DisplayName string
	MimeType    string
	ByteLength  int
	Fingerprint string
	Preview     codec.Handle
	Data        []byte
}

// Notice builds an informational or error entry.
func Notice(at time.Time, category Category, text string) Entry {
	return Entry{Kind: KindNotice, CreatedAt: at, Category: category, Text: text}
}

// Transfer builds a transfer entry from a resource. ByteLength always comes
// from the resource's data.
func Transfer(at time.Time, dir Direction, counterpart, displayName string, res *codec.Resource, preview codec.Handle) Entry {
	return Entry{
		Kind:        KindTransfer,
		CreatedAt:   at,
		Direction:   dir,
		Counterpart: counterpart,
		DisplayName: displayName,
		MimeType:    res.MimeType,
		ByteLength:  len(res.Data),
		Fingerprint: res.Fingerprint,
		Preview:     preview,
		Data:        res.Data,
	}
}

// Ledger is append-only for the life of a session.
type Ledger struct {
	entries   []Entry
	transfers []int
	observers []func(Entry)
}

func New() *Ledger {
	return &Ledger{entries: make([]Entry, 0, 64)}
}

// Append adds e at the end and notifies observers.
func (l *Ledger) Append(e Entry) {
	l.entries = append(l.entries, e)
	if e.Kind == KindTransfer {
		l.transfers = append(l.transfers, len(l.entries)-1)
	}
	for _, fn := range l.observers {
		fn(e)
	}
}

// Observe registers fn to be called with every entry appended from now on.
func (l *Ledger) Observe(fn func(Entry)) {
	l.observers = append(l.observers, fn)
}

// All returns the entries in insertion order. The slice is a copy; the byte
// payloads it points at must be treated as read-only.
func (l *Ledger) All() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l *Ledger) Len() int { return len(l.entries) }

// Transfers returns only the transfer entries, in insertion order.
func (l *Ledger) Transfers() []Entry {
	out := make([]Entry, 0, len(l.transfers))
	for _, i := range l.transfers {
		out = append(out, l.entries[i])
	}
	return out
}

// Transfer returns the n-th transfer entry, counting from 1.
func (l *Ledger) Transfer(n int) (Entry, bool) {
	if n < 1 || n > len(l.transfers) {
		return Entry{}, false
	}
	return l.entries[l.transfers[n-1]], true
}
