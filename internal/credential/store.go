package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store persists one encrypted password at a fixed path.
type Store struct {
	path string
	key  Key
	log  *zap.Logger
}

// NewStore creates a store for the credential file at path, keyed by key.
func NewStore(path string, key Key, log *zap.Logger) *Store {
	return &Store{path: path, key: key, log: log}
}

// Path returns the credential file location.
func (s *Store) Path() string { return s.path }

// Save encrypts password and overwrites the credential file. The parent
// directory is created when missing.
func (s *Store) Save(password string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	blob, err := Encrypt(password, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".password-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credential permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	s.log.Debug("credential saved", zap.String("path", s.path))
	return nil
}

// Load returns the saved password. It reports false when the file is absent
// or cannot be decrypted with this machine's key.
func (s *Store) Load() (string, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug("credential unreadable", zap.String("path", s.path), zap.Error(err))
		}
		return "", false
	}
	password, ok := Decrypt(string(raw), s.key)
	if !ok {
		s.log.Debug("credential could not be decrypted", zap.String("path", s.path))
		return "", false
	}
	return password, true
}

// Clear removes the credential file. It reports false when there was none.
func (s *Store) Clear() (bool, error) {
	err := os.Remove(s.path)
	if err == nil {
		s.log.Debug("credential cleared", zap.String("path", s.path))
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove credential: %w", err)
}

// Info describes the stored credential without revealing it.
type Info struct {
	Path        string
	Exists      bool
	Decryptable bool
	ModifiedAt  time.Time
	KeyID       string
}

// Info reports the state of the credential file.
func (s *Store) Info() Info {
	info := Info{Path: s.path, KeyID: s.key.Fingerprint()}
	fi, err := os.Stat(s.path)
	if err != nil {
		return info
	}
	info.Exists = true
	info.ModifiedAt = fi.ModTime()
	_, info.Decryptable = s.Load()
	return info
}
