package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pavelanni/icapexam/internal/model"
)

// MemorySessions keeps the admin session in process memory only.
type MemorySessions struct {
	mu   sync.Mutex
	sess *model.AdminSession
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{}
}

func (m *MemorySessions) SetAdminSession(sess model.AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &sess
	return nil
}

func (m *MemorySessions) GetAdminSession() (*model.AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	sess := *m.sess
	return &sess, nil
}

// FileSessions persists the admin token as plaintext in a single file, so an
// admin stays logged in across restarts. The issue time is the file's mtime.
type FileSessions struct {
	mu   sync.Mutex
	path string
}

func NewFileSessions(path string) *FileSessions {
	return &FileSessions{path: path}
}

func (f *FileSessions) SetAdminSession(sess model.AdminSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".admin-token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(sess.Token); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	if !sess.IssuedAt.IsZero() {
		_ = os.Chtimes(f.path, sess.IssuedAt, sess.IssuedAt)
	}
	return nil
}

func (f *FileSessions) GetAdminSession() (*model.AdminSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, nil
	}
	sess := &model.AdminSession{Token: token}
	if info, err := os.Stat(f.path); err == nil {
		sess.IssuedAt = info.ModTime()
	}
	return sess, nil
}
