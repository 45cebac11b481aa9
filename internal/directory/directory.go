// Package directory tracks the peers currently connected to the server.
package directory

import (
	"fmt"

	"github.com/bjarneo/dropchat/internal/protocol"
)

// Mode selects how presence events update the directory.
type Mode int

const (
	// ModeSnapshot replaces the directory only from full snapshots.
	ModeSnapshot Mode = iota
	// ModeIncremental also applies peer joined/left events.
	ModeIncremental
)

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "snapshot":
		return ModeSnapshot, nil
	case "incremental":
		return ModeIncremental, nil
	default:
		return ModeSnapshot, fmt.Errorf("unknown directory mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "snapshot"
}

// Directory is the latest known set of connected peers, in server order.
type Directory struct {
	mode  Mode
	peers []protocol.Peer
}

func New(mode Mode) *Directory {
	return &Directory{mode: mode}
}

func (d *Directory) Mode() Mode { return d.mode }

// Replace swaps in an authoritative snapshot. Entries without an identity are
// dropped and later duplicates of an identity are ignored.
func (d *Directory) Replace(peers []protocol.Peer) {
	next := make([]protocol.Peer, 0, len(peers))
	seen := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		if p.Identity == "" {
			continue
		}
		if _, dup := seen[p.Identity]; dup {
			continue
		}
		seen[p.Identity] = struct{}{}
		next = append(next, p)
	}
	d.peers = next
}

// Add appends a peer unless it is already present. Only meaningful in
// incremental mode; in snapshot mode it reports false and changes nothing.
func (d *Directory) Add(p protocol.Peer) bool {
	if d.mode != ModeIncremental || p.Identity == "" || d.Contains(p.Identity) {
		return false
	}
	d.peers = append(d.peers, p)
	return true
}

// Remove drops a peer by identity. Like Add, it only acts in incremental mode.
func (d *Directory) Remove(identity string) bool {
	if d.mode != ModeIncremental {
		return false
	}
	for i, p := range d.peers {
		if p.Identity == identity {
			d.peers = append(d.peers[:i:i], d.peers[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether identity is in the latest snapshot.
func (d *Directory) Contains(identity string) bool {
	for _, p := range d.peers {
		if p.Identity == identity {
			return true
		}
	}
	return false
}

// AvailableRecipients returns every peer except self, preserving order.
func (d *Directory) AvailableRecipients(self string) []protocol.Peer {
	out := make([]protocol.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		if p.Identity == self {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Peers returns a copy of the full snapshot, self included.
func (d *Directory) Peers() []protocol.Peer {
	return append([]protocol.Peer(nil), d.peers...)
}

func (d *Directory) Len() int { return len(d.peers) }
