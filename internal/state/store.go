package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	// AppDirName is the per-user directory holding config and state.
	AppDirName = "voiceink-to-notion"
	// FileName is the name of the state file.
	FileName = "sync_state.json"
)

// ErrLocked is returned by Lock when another process holds the state.
var ErrLocked = errors.New("sync state is locked by another process")

// Store persists SyncState as a JSON file.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a store backed by the file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// DefaultDir returns ~/.config/voiceink-to-notion.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// DefaultPath returns the default state file location.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields an empty state; an
// unreadable or corrupt one is logged and also yields an empty state.
func (s *Store) Load() *SyncState {
	// #nosec G304 -- path comes from configuration, not request input
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read sync state, starting empty", "path", s.path, "error", err)
		}
		return New()
	}

	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		s.logger.Warn("Sync state is corrupt, starting empty", "path", s.path, "error", err)
		return New()
	}
	return st
}

// Save atomically replaces the state file with st.
func (s *Store) Save(st *SyncState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := writeSynced(tempPath, data); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("write temporary state file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Reset deletes the state file. A missing file is not an error.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock next to the state file so two
// sync processes never write it at the same time.
func (s *Store) Lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = lock.Unlock() }, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
