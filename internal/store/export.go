package store

import (
	"fmt"

	"github.com/pavelanni/icapexam/internal/model"
)

// ExportUsers builds the users document in its original JSON shape.
func (s *Store) ExportUsers() (model.UsersDocument, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	doc := make(model.UsersDocument, len(users))
	for _, u := range users {
		doc[u.Username] = model.UserDoc{Password: u.Password, Token: u.Token}
	}
	return doc, nil
}

// ExportChapters builds the chapters document in its original JSON shape.
func (s *Store) ExportChapters() (model.ChaptersDocument, error) {
	chapters, err := s.ListChapters()
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	doc := make(model.ChaptersDocument, len(chapters))
	for _, c := range chapters {
		doc[c.ID] = c
	}
	return doc, nil
}

// ImportUsers writes every user of the document in one transaction.
// Tokens are kept so that existing sessions survive a migration.
func (s *Store) ImportUsers(doc model.UsersDocument) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for username, u := range doc {
		if err := upsertUser(tx, username, u.Password, u.Token); err != nil {
			return fmt.Errorf("import user %s: %w", username, err)
		}
	}
	return tx.Commit()
}

// ImportChapters writes every chapter of the document in one transaction.
func (s *Store) ImportChapters(doc model.ChaptersDocument) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, c := range doc {
		c.ID = id
		if err := upsertChapter(tx, c); err != nil {
			return fmt.Errorf("import chapter %s: %w", id, err)
		}
	}
	return tx.Commit()
}
