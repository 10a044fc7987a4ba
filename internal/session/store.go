// Package session owns the durable bearer token. The token is loaded once at
// startup and changes only through SetToken and Clear.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds the process-wide bearer token.
type Store interface {
	Token() string
	SetToken(token string) error
	Clear() error
}

// MemoryStore keeps the token in memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates a MemoryStore seeded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (m *MemoryStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryStore) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.SetToken("")
}

// credentials is the on-disk layout of the credentials file.
type credentials struct {
	Token string `yaml:"token"`
}

// FileStore persists the token in a YAML credentials file.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	sealer *Sealer
	token  string
}

// OpenFileStore loads the credentials file at path. A missing file yields an
// empty session.
func OpenFileStore(path string, sealer *Sealer) (*FileStore, error) {
	fs := &FileStore{path: path, sealer: sealer}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fs, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	token, err := sealer.Open(creds.Token)
	if err != nil {
		return nil, err
	}
	fs.token = token
	return fs, nil
}

// Path returns the credentials file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Token() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.token
}

// SetToken stores token and writes it to disk.
func (f *FileStore) SetToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, err := f.sealer.Seal(token)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	data, err := yaml.Marshal(credentials{Token: stored})
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	f.token = token
	return nil
}

// Clear forgets the token and removes the credentials file.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.token = ""
	return RemoveCredentials(f.path)
}

// RemoveCredentials deletes the credentials file at path without reading it,
// so a token sealed under an unknown key can still be discarded.
func RemoveCredentials(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}
