// Package session owns the client's access token: where it is kept and how
// it is obtained from an OAuth authorization code.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/danielolaszy/prcommenter/internal/apperr"
)

// TokenKey is the fixed key the session token is stored under.
const TokenKey = "accessToken"

// Store keeps at most one session token. An empty token from Get means
// logged out.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store holding token, which may be empty.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear() error {
	return s.Set("")
}

// FileStore persists the token as a small JSON document readable only by
// the current user.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns ~/.prcommenter/session.json.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".prcommenter", "session.json"), nil
}

// NewFileStore returns a store backed by the file at path. The file and its
// directory are created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	return values[TokenKey], nil
}

func (s *FileStore) Set(token string) error {
	if token == "" {
		return s.Clear()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create the session directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(map[string]string{TokenKey: token})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	// Write to a temporary file next to the target
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	// Restrict permissions, then move it into place
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("failed to protect session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to store session file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// TokenSource adapts store to an oauth2.TokenSource. The store is read on
// every call, so a logout takes effect on the next request.
func TokenSource(store Store) oauth2.TokenSource {
	return storeTokenSource{store: store}
}

type storeTokenSource struct {
	store Store
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, &apperr.MissingAuthError{}
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
