package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"guild-overlay/internal/model"
	"guild-overlay/pkg/apierror"
)

const maxBodyBytes = 64 << 10

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps err onto exactly one HTTP outcome. Errors that match no
// known class are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrUpstreamAuth):
		status = http.StatusBadGateway
		body.Code = "UPSTREAM_AUTH_FAILED"
		body.Message = "Discord login failed"
	case errors.Is(err, model.ErrNotAMember):
		status = http.StatusForbidden
		body.Code = "NOT_A_MEMBER"
		body.Message = "User is not part of an authorised guild"
	case errors.Is(err, model.ErrInvalidCredential):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "invalid or expired token"
	case errors.Is(err, model.ErrInvalidOAuthState):
		status = http.StatusBadRequest
		body.Code = "INVALID_STATE"
		body.Message = "Login state is invalid or expired"
	case errors.Is(err, model.ErrSelfAssignment):
		status = http.StatusConflict
		body.Code = "SELF_ASSIGNMENT"
		body.Message = "You cannot accept your own request"
	case errors.Is(err, model.ErrInvalidState):
		status = http.StatusConflict
		body.Code = "INVALID_STATE_TRANSITION"
		body.Message = "Request is not in a state that allows this action"
		body.Details = err.Error()
	case errors.Is(err, model.ErrNotParticipant):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Not permitted to change this request"
	case errors.Is(err, model.ErrMissingRole):
		status = http.StatusForbidden
		body.Code = "MISSING_ROLE"
		body.Message = "Missing required role for this event"
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	case errors.Is(err, model.ErrRequestNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Request not found"
	case errors.Is(err, model.ErrEventNotFound):
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Event not found"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}
