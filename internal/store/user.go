package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/icapexam/internal/model"
)

// UpsertUser creates a user or replaces the password of an existing one.
// The stored token is cleared either way.
func (s *Store) UpsertUser(u model.User) error {
	if err := upsertUser(s.db, u.Username, u.Password, ""); err != nil {
		slog.Error("failed to upsert user", "username", u.Username, "error", err)
		return err
	}
	slog.Info("stored user", "username", u.Username)
	return nil
}

func upsertUser(db execer, username, password, token string) error {
	_, err := db.Exec(
		`INSERT INTO users (username, password, token, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET password = excluded.password, token = excluded.token`,
		username, password, token, time.Now(),
	)
	return err
}

// GetUserByUsername returns a user by username, or nil if not found.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT username, password, token, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.Password, &u.Token, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByToken returns the user holding the given session token, or nil.
func (s *Store) GetUserByToken(token string) (*model.User, error) {
	if token == "" {
		return nil, nil
	}
	var u model.User
	err := s.db.QueryRow(
		`SELECT username, password, token, created_at FROM users WHERE token = ?`, token,
	).Scan(&u.Username, &u.Password, &u.Token, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserToken replaces the session token of a single user.
func (s *Store) SetUserToken(username, token string) error {
	res, err := s.db.Exec(`UPDATE users SET token = ? WHERE username = ?`, token, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT username, password, token, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Username, &u.Password, &u.Token, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
