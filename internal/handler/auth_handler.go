package handler

import (
	"context"
	"net/http"
	"strings"

	"guild-overlay/internal/model"
	"guild-overlay/pkg/apierror"
)

type authService interface {
	LoginURL() (string, error)
	Callback(ctx context.Context, code string, state string) (model.Credential, error)
	Me(principal *model.Principal) model.UserInfo
	Logout(ctx context.Context, principal *model.Principal) (bool, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login redirects the browser to the Discord consent page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	target, err := h.service.LoginURL()
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

type callbackPayload struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// Callback accepts code and state from the query string, or from a JSON body
// on POST.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	payload := callbackPayload{
		Code:  r.URL.Query().Get("code"),
		State: r.URL.Query().Get("state"),
	}

	if payload.Code == "" && r.Method == http.MethodPost && r.ContentLength > 0 {
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, err)
			return
		}
	}

	payload.Code = strings.TrimSpace(payload.Code)
	if payload.Code == "" {
		writeError(w, apierror.BadRequest("code is required", "code"))
		return
	}

	credential, err := h.service.Callback(r.Context(), payload.Code, strings.TrimSpace(payload.State))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, credential)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.service.Me(principal))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	revoked, err := h.service.Logout(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"revoked": revoked})
}
