package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjarneo/dropchat/internal/protocol"
)

func peers(ids ...string) []protocol.Peer {
	out := make([]protocol.Peer, 0, len(ids))
	for _, id := range ids {
		out = append(out, protocol.Peer{Identity: id, Handle: "sock-" + id})
	}
	return out
}

func TestReplaceIsWholesale(t *testing.T) {
	d := New(ModeSnapshot)
	d.Replace(peers("me", "Alice", "Bob"))
	d.Replace(peers("Charlie", "me"))

	assert.False(t, d.Contains("Alice"))
	assert.True(t, d.Contains("Charlie"))
	assert.Equal(t, peers("Charlie", "me"), d.Peers())
}

func TestReplaceDropsBlankAndDuplicate(t *testing.T) {
	d := New(ModeSnapshot)
	d.Replace([]protocol.Peer{{Identity: "Alice", Handle: "1"}, {Identity: ""}, {Identity: "Alice", Handle: "2"}})

	assert.Equal(t, []protocol.Peer{{Identity: "Alice", Handle: "1"}}, d.Peers())
}

func TestAvailableRecipientsExcludesSelfAndKeepsOrder(t *testing.T) {
	d := New(ModeSnapshot)
	d.Replace(peers("Bob", "me", "Alice", "Charlie"))

	assert.Equal(t, peers("Bob", "Alice", "Charlie"), d.AvailableRecipients("me"))
	assert.Equal(t, 4, d.Len())
}

func TestSnapshotModeIgnoresIncrementalUpdates(t *testing.T) {
	d := New(ModeSnapshot)
	d.Replace(peers("Alice"))

	assert.False(t, d.Add(protocol.Peer{Identity: "Bob"}))
	assert.False(t, d.Remove("Alice"))
	assert.Equal(t, peers("Alice"), d.Peers())
}

func TestIncrementalMode(t *testing.T) {
	d := New(ModeIncremental)
	d.Replace(peers("Alice", "Bob"))

	assert.True(t, d.Add(protocol.Peer{Identity: "Charlie"}))
	assert.False(t, d.Add(protocol.Peer{Identity: "Alice"}))
	assert.True(t, d.Remove("Alice"))
	assert.False(t, d.Remove("Mallory"))

	got := d.Peers()
	require.Len(t, got, 2)
	assert.Equal(t, "Bob", got[0].Identity)
	assert.Equal(t, "Charlie", got[1].Identity)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("incremental")
	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSnapshot, m)

	_, err = ParseMode("gossip")
	assert.Error(t, err)
}
