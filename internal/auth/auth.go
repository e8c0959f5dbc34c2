// Package auth implements student logins, chapter access checks and the
// single admin session that gates chapter editing.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/icapexam/internal/model"
)

var (
	ErrNoAdminToken        = fmt.Errorf("no admin token provided: %w", model.ErrUnauthorized)
	ErrAdminNotInitialized = fmt.Errorf("admin not initialized: %w", model.ErrUnauthorized)
	ErrAdminTokenMismatch  = fmt.Errorf("admin token mismatch: %w", model.ErrUnauthorized)
)

// UserStore is the persistence needed for student credentials.
type UserStore interface {
	GetUserByUsername(username string) (*model.User, error)
	GetUserByToken(token string) (*model.User, error)
	SetUserToken(username, token string) error
	UpsertUser(u model.User) error
}

// AdminSessions holds at most one active admin session.
type AdminSessions interface {
	SetAdminSession(sess model.AdminSession) error
	GetAdminSession() (*model.AdminSession, error)
}

// Config holds the admin identity and the demo access policy.
type Config struct {
	AdminUsername string
	// AdminPasswordHash is a bcrypt hash of the admin password.
	AdminPasswordHash string
	// DemoChapter is the only chapter readable without a token.
	DemoChapter int
}

// Service is the credential service.
type Service struct {
	users    UserStore
	sessions AdminSessions
	cfg      Config
	now      func() time.Time
}

// New creates a credential service.
func New(users UserStore, sessions AdminSessions, cfg Config) *Service {
	if cfg.DemoChapter == 0 {
		cfg.DemoChapter = 1
	}
	return &Service{users: users, sessions: sessions, cfg: cfg, now: time.Now}
}

// HashPassword returns a bcrypt hash suitable for Config.AdminPasswordHash
// and for stored user passwords.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks a student's credentials and issues a fresh session token.
func (s *Service) Login(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", model.ErrInvalidCredentials
	}
	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if user == nil || !passwordMatches(user.Password, password) {
		slog.Info("login rejected", "username", username)
		return "", model.ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.users.SetUserToken(username, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	slog.Info("user logged in", "username", username)
	return token, nil
}

// passwordMatches accepts bcrypt hashes and, for imported legacy documents,
// plaintext passwords.
func passwordMatches(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}

// VerifyAccess decides whether the holder of token may open a chapter.
// Without a token only the demo chapter is readable; any valid token opens
// every chapter.
func (s *Service) VerifyAccess(token string, chapter model.ChapterRef) (model.Access, error) {
	if token == "" {
		n, ok := chapter.Number()
		if chapter == "" {
			n, ok = s.cfg.DemoChapter, true
		}
		return model.Access{Granted: ok && n == s.cfg.DemoChapter, Mode: model.AccessDemo}, nil
	}

	user, err := s.users.GetUserByToken(token)
	if err != nil {
		return model.Access{Mode: model.AccessInvalid}, fmt.Errorf("lookup token: %w", err)
	}
	if user == nil {
		return model.Access{Mode: model.AccessInvalid}, nil
	}
	return model.Access{Granted: true, Mode: model.AccessLogin, Username: user.Username}, nil
}

// AddUser creates or resets a student account.
func (s *Service) AddUser(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password required: %w", model.ErrBadRequest)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpsertUser(model.User{Username: username, Password: hash})
}

// AdminLogin checks the admin identity and starts a new admin session,
// invalidating the previous one.
func (s *Service) AdminLogin(username, password string) (string, error) {
	if username != s.cfg.AdminUsername || s.cfg.AdminPasswordHash == "" {
		return "", model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", model.ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.sessions.SetAdminSession(model.AdminSession{Token: token, IssuedAt: s.now()}); err != nil {
		return "", fmt.Errorf("store admin session: %w", err)
	}
	slog.Info("admin logged in", "username", username)
	return token, nil
}

// RequireAdmin returns nil iff token is the active admin token.
// Failures wrap model.ErrUnauthorized.
func (s *Service) RequireAdmin(token string) error {
	if token == "" {
		return ErrNoAdminToken
	}
	sess, err := s.sessions.GetAdminSession()
	if err != nil {
		return fmt.Errorf("get admin session: %w", err)
	}
	if sess == nil || sess.Token == "" {
		return ErrAdminNotInitialized
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(sess.Token)) != 1 {
		return ErrAdminTokenMismatch
	}
	return nil
}

// AdminStatus is a diagnostic view of an admin token check.
type AdminStatus struct {
	TokenProvided    bool
	TokenValid       bool
	AdminTokenExists bool
}

// CheckAdmin reports the admin status of token without failing.
func (s *Service) CheckAdmin(token string) AdminStatus {
	err := s.RequireAdmin(token)
	st := AdminStatus{
		TokenProvided: token != "",
		TokenValid:    err == nil,
	}
	switch {
	case err == nil, errors.Is(err, ErrAdminTokenMismatch):
		st.AdminTokenExists = true
	case errors.Is(err, ErrNoAdminToken):
		sess, gerr := s.sessions.GetAdminSession()
		st.AdminTokenExists = gerr == nil && sess != nil && sess.Token != ""
	}
	return st
}
