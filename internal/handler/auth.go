package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/icapexam/internal/i18n"
	"github.com/pavelanni/icapexam/internal/model"
)

// adminTokenHeader carries the admin session token.
const adminTokenHeader = "Admin-Token"

type adminCtxKey struct{}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Token   string           `json:"token"`
	Chapter model.ChapterRef `json:"chapter"`
}

type verifyResponse struct {
	Valid    bool             `json:"valid"`
	Mode     model.AccessMode `json:"mode"`
	Username string           `json:"username,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, model.ErrInvalidCredentials)
		return
	}
	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"token":    token,
		"username": req.Username,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	acc, err := h.auth.VerifyAccess(req.Token, req.Chapter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: acc.Granted, Mode: acc.Mode, Username: acc.Username})
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, err := h.auth.AdminLogin(req.Username, req.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		slog.Warn("admin login rejected", "username", req.Username)
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Invalid admin credentials",
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"admin_token": token,
		"message":     appI18n.T(r.Context(), "AdminLoginSuccess"),
	})
}

// requireAdmin is middleware that rejects requests without the active admin token.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.auth.RequireAdmin(r.Header.Get(adminTokenHeader)); err != nil {
			slog.Warn("admin request rejected", "path", r.URL.Path, "reason", err)
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), adminCtxKey{}, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isAdmin reports whether requireAdmin admitted the request.
func isAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(adminCtxKey{}).(bool)
	return ok
}

func (h *Handler) handleCheckToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(adminTokenHeader)
	st := h.auth.CheckAdmin(token)

	var msgID string
	switch {
	case st.TokenValid:
		msgID = "AdminTokenValid"
	case !st.TokenProvided:
		msgID = "AdminTokenMissing"
	case !st.AdminTokenExists:
		msgID = "AdminNotLoggedIn"
	default:
		msgID = "AdminTokenInvalid"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token_provided":     st.TokenProvided,
		"token_valid":        st.TokenValid,
		"admin_token_exists": st.AdminTokenExists,
		"message":            appI18n.T(r.Context(), msgID),
	})
}
