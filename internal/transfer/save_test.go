package transfer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjarneo/dropchat/internal/directory"
	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/protocol"
)

func TestSaveTransferNeverOverwrites(t *testing.T) {
	s, _ := newTestSession(t, directory.ModeSnapshot)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("old"), 0o600))

	s.HandleInboundMedia(protocol.InboundMedia{Buffer: json.RawMessage(`[104,105]`), Sender: "Alice", MimeType: "image/jpeg", DisplayName: "photo.jpg"})

	path, err := s.SaveTransfer(1, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo-1.jpg"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))

	old, err := os.ReadFile(filepath.Join(dir, "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	entries := s.Entries()
	assert.Contains(t, entries[len(entries)-1].Text, "Saved photo.jpg (2 B)")
}

func TestSaveTransferCreatesDirectory(t *testing.T) {
	s, _ := newTestSession(t, directory.ModeSnapshot)
	dir := filepath.Join(t.TempDir(), "downloads", "today")

	s.HandleInboundMedia(protocol.InboundMedia{Buffer: json.RawMessage(`[1]`), Sender: "Alice", MimeType: "text/plain", DisplayName: "a.txt"})

	path, err := s.SaveTransfer(1, dir)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSaveTransferUnknownIndex(t *testing.T) {
	s, _ := newTestSession(t, directory.ModeSnapshot)

	_, err := s.SaveTransfer(0, t.TempDir())
	assert.Error(t, err)
	_, err = s.SaveTransfer(3, t.TempDir())
	assert.Error(t, err)
}

func TestSaveTransferWriteFailureIsNotice(t *testing.T) {
	s, _ := newTestSession(t, directory.ModeSnapshot)
	s.HandleInboundMedia(protocol.InboundMedia{Buffer: json.RawMessage(`[1]`), Sender: "Alice", MimeType: "text/plain", DisplayName: "a.txt"})

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := s.SaveTransfer(1, filepath.Join(blocker, "sub"))
	require.Error(t, err)

	entries := s.Entries()
	assert.Equal(t, ledger.CategoryError, entries[len(entries)-1].Category)
}
