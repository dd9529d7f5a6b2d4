// Package sessionstore persists the backend session between process runs.
package sessionstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/troubleshooter/internal/crypto/clientcrypto"
	"github.com/and161185/troubleshooter/internal/model"
)

// Store persists at most one session.
type Store interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*model.Session, error)
	// Save replaces the stored session.
	Save(ctx context.Context, s *model.Session) error
	// Clear removes the stored session.
	Clear(ctx context.Context) error
}

// ErrBadPassphrase is returned when a sealed session cannot be opened.
var ErrBadPassphrase = errors.New("session file: wrong passphrase or corrupted")

// sealedMagic prefixes sealed session files: magic || salt || nonce || ciphertext.
var sealedMagic = []byte("TSS1")

var sealAAD = []byte("troubleshooter/session")

type sessionFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
}

// File stores the session as JSON, optionally sealed with a passphrase.
type File struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewFile creates a file-backed store at path. Empty passphrase stores plain JSON.
func NewFile(path, passphrase string) *File {
	f := &File{path: path}
	if passphrase != "" {
		f.passphrase = []byte(passphrase)
	}
	return f
}

// DefaultPath returns <XDG_CONFIG_HOME or ~/.config>/troubleshooter/session.json.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "session.json")
}

// ConfigDir returns the per-user configuration directory of the application.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "troubleshooter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "troubleshooter")
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads the session file. A missing file is not an error.
func (f *File) Load(_ context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(b, sealedMagic) {
		if b, err = f.open(b); err != nil {
			return nil, err
		}
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return nil, fmt.Errorf("session file: %w", err)
	}
	if sf.AccessToken == "" {
		return nil, nil
	}
	uid, err := uuid.FromString(sf.UserID)
	if err != nil {
		return nil, fmt.Errorf("session file: user id: %w", err)
	}
	return &model.Session{
		AccessToken:  sf.AccessToken,
		RefreshToken: sf.RefreshToken,
		TokenType:    sf.TokenType,
		ExpiresAt:    sf.ExpiresAt,
		User:         model.User{ID: uid, Email: sf.Email, DisplayName: sf.DisplayName},
	}, nil
}

// Save writes the session file with 0600 permissions.
func (f *File) Save(_ context.Context, s *model.Session) error {
	if s == nil {
		return f.Clear(context.Background())
	}
	b, err := json.MarshalIndent(sessionFile{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		ExpiresAt:    s.ExpiresAt,
		UserID:       s.User.ID.String(),
		Email:        s.User.Email,
		DisplayName:  s.User.DisplayName,
	}, "", "  ")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.passphrase != nil {
		if b, err = f.seal(b); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Clear removes the session file.
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *File) seal(plain []byte) ([]byte, error) {
	salt, err := clientcrypto.Rand(clientcrypto.SaltLen)
	if err != nil {
		return nil, err
	}
	sealed, err := clientcrypto.Seal(clientcrypto.DeriveKey(f.passphrase, salt), plain, sealAAD)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedMagic)+len(salt)+len(sealed))
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	return append(out, sealed...), nil
}

func (f *File) open(b []byte) ([]byte, error) {
	if f.passphrase == nil {
		return nil, errors.New("session file is sealed: passphrase required")
	}
	b = b[len(sealedMagic):]
	if len(b) < clientcrypto.SaltLen {
		return nil, ErrBadPassphrase
	}
	salt, sealed := b[:clientcrypto.SaltLen], b[clientcrypto.SaltLen:]
	plain, err := clientcrypto.Open(clientcrypto.DeriveKey(f.passphrase, salt), sealed, sealAAD)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plain, nil
}

// Memory keeps the session in process memory only.
type Memory struct {
	mu sync.Mutex
	s  *model.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, nil
	}
	c := *m.s
	return &c, nil
}

func (m *Memory) Save(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		m.s = nil
		return nil
	}
	c := *s
	m.s = &c
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.s = nil
	m.mu.Unlock()
	return nil
}

var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)
