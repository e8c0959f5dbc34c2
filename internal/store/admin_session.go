package store

import (
	"database/sql"

	"github.com/pavelanni/icapexam/internal/model"
)

// SetAdminSession stores the admin session, replacing any previous one.
func (s *Store) SetAdminSession(sess model.AdminSession) error {
	_, err := s.db.Exec(
		`INSERT INTO admin_session (id, token, issued_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, issued_at = excluded.issued_at`,
		sess.Token, sess.IssuedAt,
	)
	return err
}

// GetAdminSession returns the active admin session, or nil if no admin has logged in.
func (s *Store) GetAdminSession() (*model.AdminSession, error) {
	var sess model.AdminSession
	err := s.db.QueryRow(`SELECT token, issued_at FROM admin_session WHERE id = 1`).Scan(&sess.Token, &sess.IssuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
