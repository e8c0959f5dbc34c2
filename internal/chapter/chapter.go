// Package chapter is the admin-gated repository of question chapters.
package chapter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/icapexam/internal/model"
)

// Store is the chapter persistence the repository needs.
type Store interface {
	GetChapter(id string) (*model.Chapter, error)
	ListChapters() ([]model.Chapter, error)
	UpsertChapter(c model.Chapter) error
	DeleteChapter(id string) (bool, error)
}

// Repository wraps a Store with the access rules for chapters.
type Repository struct {
	store Store
}

func New(s Store) *Repository {
	return &Repository{store: s}
}

// Get returns a chapter; it is readable by anyone.
func (r *Repository) Get(id string) (model.Chapter, error) {
	c, err := r.store.GetChapter(id)
	if err != nil {
		return model.Chapter{}, fmt.Errorf("get chapter %s: %w", id, err)
	}
	if c == nil {
		return model.Chapter{}, fmt.Errorf("chapter %s: %w", id, model.ErrNotFound)
	}
	return *c, nil
}

// All returns every chapter keyed by ID. Admin only.
func (r *Repository) All(admin bool) (model.ChaptersDocument, error) {
	if !admin {
		return nil, model.ErrUnauthorized
	}
	chapters, err := r.store.ListChapters()
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	doc := make(model.ChaptersDocument, len(chapters))
	for _, c := range chapters {
		doc[c.ID] = c
	}
	return doc, nil
}

// Upsert replaces a chapter's name and questions, creating it if absent. Admin only.
func (r *Repository) Upsert(c model.Chapter, admin bool) error {
	if !admin {
		return model.ErrUnauthorized
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return fmt.Errorf("no chapter_id provided: %w", model.ErrBadRequest)
	}
	if c.Questions == nil {
		c.Questions = []model.Question{}
	}
	if err := r.store.UpsertChapter(c); err != nil {
		return fmt.Errorf("upsert chapter %s: %w", c.ID, err)
	}
	slog.Info("chapter updated", "chapter_id", c.ID, "questions", len(c.Questions))
	return nil
}

// Delete removes a chapter. Admin only.
func (r *Repository) Delete(id string, admin bool) error {
	if !admin {
		return model.ErrUnauthorized
	}
	existed, err := r.store.DeleteChapter(id)
	if err != nil {
		return fmt.Errorf("delete chapter %s: %w", id, err)
	}
	if !existed {
		return fmt.Errorf("chapter %s: %w", id, model.ErrNotFound)
	}
	slog.Info("chapter deleted", "chapter_id", id)
	return nil
}
