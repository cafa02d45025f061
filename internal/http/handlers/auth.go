package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/crypto-dashboard/internal/errors"
	"github.com/pribylovaa/crypto-dashboard/internal/guard"
	"github.com/pribylovaa/crypto-dashboard/internal/models"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) valid() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

type loginResponse struct {
	User       *models.User `json:"user"`
	RedirectTo string       `json:"redirect_to"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

// GetSession отдаёт снимок сессии: пользователь, признак проверки, состояние.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Session.Snapshot())
}

// Login выполняет вход. Адрес возврата берётся из ?from= и
// проходит через guard.ReturnTo.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeStrict(w, r, &in, false); err != nil || !in.valid() {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	user, err := h.deps.Session.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: user, RedirectTo: guard.ReturnTo(r)})
}

// Register регистрирует пользователя. Сессию не трогает.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeStrict(w, r, &in, false); err != nil || !in.valid() {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := h.deps.Session.Register(r.Context(), strings.TrimSpace(in.Email), in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// Refresh обновляет access-токен. Сам токен наружу не отдаётся.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.deps.Session.RefreshToken(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: h.deps.Session.Snapshot().User})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.deps.Session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
