package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/icapexam/internal/i18n"
	"github.com/pavelanni/icapexam/internal/model"
)

type addUserRequest struct {
	User string `json:"user" validate:"required"`
	Pass string `json:"pass" validate:"required"`
}

type updateChapterRequest struct {
	ChapterID string           `json:"chapter_id"`
	Name      string           `json:"name"`
	Questions []model.Question `json:"questions" validate:"dive"`
}

func (h *Handler) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.auth.AddUser(req.User, req.Pass); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": req.User})
}

func (h *Handler) handleUpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req updateChapterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	c := model.Chapter{ID: strings.TrimSpace(req.ChapterID), Name: req.Name, Questions: req.Questions}
	if err := h.chapters.Upsert(c, isAdmin(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"updated":         c.ID,
		"questions_count": len(req.Questions),
		"message":         appI18n.Tp(r.Context(), "QuestionsSaved", len(req.Questions)),
	})
}

func (h *Handler) handleListChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := h.chapters.All(isAdmin(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"chapters": chapters,
		"count":    len(chapters),
	})
}

func (h *Handler) handleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.chapters.Delete(id, isAdmin(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}
