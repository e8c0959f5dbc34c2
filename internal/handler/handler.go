package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/icapexam/internal/auth"
	"github.com/pavelanni/icapexam/internal/chapter"
	"github.com/pavelanni/icapexam/internal/evaluator"
	"github.com/pavelanni/icapexam/internal/model"
	"github.com/pavelanni/icapexam/internal/ocr"
)

// maxBodyBytes bounds request bodies; answers may carry a base64 image.
const maxBodyBytes = 10 << 20

var validate = validator.New()

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	auth     *auth.Service
	chapters *chapter.Repository
	eval     *evaluator.Evaluator
	ocr      ocr.Extractor
	config   model.ServerConfig
	now      func() time.Time
}

// New creates a new Handler. A nil extractor disables image OCR.
func New(a *auth.Service, c *chapter.Repository, e *evaluator.Evaluator, o ocr.Extractor, cfg model.ServerConfig) *Handler {
	return &Handler{auth: a, chapters: c, eval: e, ocr: o, config: cfg, now: time.Now}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/verify", h.handleVerify)
	r.Get("/chapter/{id}", h.handleGetChapter)
	r.Post("/check-answer", h.handleCheckAnswer)

	r.Route("/admin", func(ar chi.Router) {
		ar.Post("/login", h.handleAdminLogin)
		ar.Post("/check-token", h.handleCheckToken)

		ar.Group(func(gr chi.Router) {
			gr.Use(h.requireAdmin)
			gr.Post("/add-user", h.handleAddUser)
			gr.Post("/update-chapter", h.handleUpdateChapter)
			gr.Get("/chapters", h.handleListChapters)
			gr.Delete("/delete-chapter/{id}", h.handleDeleteChapter)
		})
	})

	if h.config.StaticDir != "" {
		r.Get("/*", http.FileServer(http.Dir(h.config.StaticDir)).ServeHTTP)
	}
}

// NoStore disables client and proxy caching of every response.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	c, err := h.chapters.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// decodeJSON reads a JSON body into v and validates it. All failures wrap
// model.ErrBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", model.ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeError maps domain errors to status codes and client messages.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
	case errors.Is(err, auth.ErrNoAdminToken):
		writeErr(w, http.StatusForbidden, "No admin token provided")
	case errors.Is(err, auth.ErrAdminNotInitialized):
		writeErr(w, http.StatusForbidden, "Admin not initialized")
	case errors.Is(err, model.ErrUnauthorized):
		writeErr(w, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, model.ErrNotFound):
		writeErr(w, http.StatusNotFound, "Chapter not found")
	case errors.Is(err, model.ErrBadRequest):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}
