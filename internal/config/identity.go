package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	identityFileMode = 0o600
	identityDirMode  = 0o700
	tempFilePattern  = ".identity-*.toml.tmp"
)

// IdentityCache remembers the last identity used to join.
type IdentityCache struct {
	path string
	now  func() time.Time
}

type identityFile struct {
	Identity identitySection `toml:"identity"`
}

type identitySection struct {
	Name      string    `toml:"name"`
	UpdatedAt time.Time `toml:"updated_at"`
}

func NewIdentityCache(path string) *IdentityCache {
	return &IdentityCache{path: path, now: time.Now}
}

// Load returns the cached identity, or "" when nothing was cached yet.
func (c *IdentityCache) Load() (string, error) {
	if c.path == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read identity cache: %w", err)
	}

	var file identityFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("decode identity cache: %w", err)
	}
	return file.Identity.Name, nil
}

// Save replaces the cached identity. The file is swapped in with a rename so
// readers never see a partial write.
func (c *IdentityCache) Save(name string) error {
	if c.path == "" {
		return nil
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, identityDirMode); err != nil {
		return fmt.Errorf("create identity cache directory: %w", err)
	}

	data, err := toml.Marshal(identityFile{Identity: identitySection{Name: name, UpdatedAt: c.now().UTC()}})
	if err != nil {
		return fmt.Errorf("encode identity cache: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp identity cache: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp identity cache: %w", err)
	}
	if err := tmp.Chmod(identityFileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp identity cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp identity cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replace identity cache: %w", err)
	}
	cleanup = false
	return nil
}
