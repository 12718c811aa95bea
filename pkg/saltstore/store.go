// Package saltstore persists the one Salt used for every key derivation of a deployment.
//
// The file format matches the .staticrypt.json config that StatiCrypt reads, so the gate and this tool derive the same key.
// A salt is created once and never rewritten, since changing it makes every existing artifact unreadable.
package saltstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrConfigMissing = errors.New("salt config is missing")
)

// Store provides access to the persisted Salt.
type Store interface {
	// Load returns the persisted Salt, or ErrConfigMissing if there isn't one.
	Load() (gatecrypt.Salt, error)
	// LoadOrCreate returns the persisted Salt, generating and persisting a new one if needed.
	// created reports whether a new Salt was generated.
	LoadOrCreate() (salt gatecrypt.Salt, created bool, err error)
}

// Config is the persisted record.
type Config struct {
	Salt gatecrypt.Salt `json:"salt"`
}

var _ Store = (*FileStore)(nil)

// FileStore keeps the Config in a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (gatecrypt.Salt, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrConfigMissing, s.path)
		}
		return "", err
	}
	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return "", fmt.Errorf("failed to parse salt config '%s': %w", s.path, err)
	}
	if len(conf.Salt) == 0 {
		return "", fmt.Errorf("%w: no salt in %s", ErrConfigMissing, s.path)
	}
	if err := conf.Salt.Validate(); err != nil {
		return "", fmt.Errorf("salt in '%s': %w", s.path, err)
	}
	return conf.Salt, nil
}

func (s *FileStore) LoadOrCreate() (gatecrypt.Salt, bool, error) {
	salt, err := s.Load()
	if err == nil {
		return salt, false, nil
	}
	if !errors.Is(err, ErrConfigMissing) {
		return "", false, err
	}
	if _, statErr := os.Stat(s.path); statErr == nil {
		// An existing config is never rewritten, even if it has no salt.
		return "", false, err
	}

	salt, err = gatecrypt.GenerateSalt()
	if err != nil {
		return "", false, err
	}
	data, err := json.MarshalIndent(Config{Salt: salt}, "", "  ")
	if err != nil {
		return "", false, err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", false, err
		}
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", false, fmt.Errorf("failed to create salt config '%s': %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return "", false, err
	}
	if err := f.Sync(); err != nil {
		return "", false, err
	}
	return salt, true, nil
}

var _ Store = (*MemStore)(nil)

// MemStore is a Store held in memory.
type MemStore struct {
	Salt gatecrypt.Salt
}

func (s *MemStore) Load() (gatecrypt.Salt, error) {
	if len(s.Salt) == 0 {
		return "", ErrConfigMissing
	}
	return s.Salt, nil
}

func (s *MemStore) LoadOrCreate() (gatecrypt.Salt, bool, error) {
	if len(s.Salt) > 0 {
		return s.Salt, false, nil
	}
	salt, err := gatecrypt.GenerateSalt()
	if err != nil {
		return "", false, err
	}
	s.Salt = salt
	return salt, true, nil
}
