package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"guild-overlay/internal/model"
	"guild-overlay/internal/policy"
)

// CredentialValidator turns a bearer credential into the caller it was issued
// to.
type CredentialValidator interface {
	Validate(ctx context.Context, token string) (*model.Principal, error)
}

type contextKey string

const (
	principalContextKey contextKey = "principal"
	accessTokenQueryKey            = "access_token"
)

type AuthMiddleware struct {
	validator CredentialValidator
}

func NewAuthMiddleware(validator CredentialValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth rejects requests without a valid bearer credential.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.authenticate(next, false)
}

// RequireStreamAuth also accepts the credential in the access_token query
// parameter, since browsers cannot set headers on a websocket upgrade.
func (m *AuthMiddleware) RequireStreamAuth(next http.Handler) http.Handler {
	return m.authenticate(next, true)
}

func (m *AuthMiddleware) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok && allowQuery {
			token = strings.TrimSpace(r.URL.Query().Get(accessTokenQueryKey))
			ok = token != ""
		}
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		principal, err := m.validator.Validate(r.Context(), token)
		if errors.Is(err, model.ErrNotAMember) {
			writeAuthError(w, http.StatusForbidden, "NOT_A_MEMBER", "User is not part of an authorised guild")
			return
		}
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequirePermission must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission policy.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}

			if !principal.HasPermission(string(permission)) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, principal *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*model.Principal)
	return principal, ok && principal != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	writeEnvelope(w, status, code, message)
}

func writeEnvelope(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    code,
			Message: message,
		},
	})
}
