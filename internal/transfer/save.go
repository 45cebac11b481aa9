package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bjarneo/dropchat/internal/ledger"
	"github.com/bjarneo/dropchat/internal/util"
)

const maxSaveAttempts = 100

// SaveTransfer writes the bytes of the n-th transfer (counting from 1) into
// dir and returns the written path. Existing files are never overwritten; a
// numeric suffix is added instead.
func (s *Session) SaveTransfer(n int, dir string) (string, error) {
	entry, ok := s.ledger.Transfer(n)
	if !ok {
		return "", fmt.Errorf("no transfer #%d", n)
	}
	path, err := writeUnique(dir, util.SanitizeFileName(entry.DisplayName), entry.Data)
	if err != nil {
		err = fmt.Errorf("save transfer #%d: %w", n, err)
		s.HandleError(err)
		return "", err
	}
	s.notice(ledger.CategoryInfo, fmt.Sprintf("Saved %s (%s) to %s", entry.DisplayName, FormatSize(entry.ByteLength), path))
	return path, nil
}

func writeUnique(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxSaveAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("%s: too many files with the same name", name)
}
