package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"guild-overlay/internal/middleware"
	"guild-overlay/internal/model"
	"guild-overlay/pkg/apierror"
)

func principalFromRequest(r *http.Request) (*model.Principal, error) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return nil, apierror.Unauthorized("authentication required")
	}
	return principal, nil
}

func actorFromPrincipal(principal *model.Principal) model.Actor {
	return model.Actor{ID: principal.UserID, Name: principal.DisplayName}
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest(name+" must be a positive integer", raw)
	}
	return id, nil
}
