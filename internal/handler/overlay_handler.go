package handler

import (
	"context"
	"net/http"

	"guild-overlay/internal/model"
)

type overlayService interface {
	Events(ctx context.Context) ([]model.Event, error)
	Roster(ctx context.Context) ([]model.RosterMember, error)
	Attendance(ctx context.Context) ([]model.AttendanceRecord, error)
}

type OverlayHandler struct {
	service overlayService
}

func NewOverlayHandler(service overlayService) *OverlayHandler {
	return &OverlayHandler{service: service}
}

func (h *OverlayHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.Events(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, events)
}

func (h *OverlayHandler) Roster(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.Roster(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, members)
}

func (h *OverlayHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Attendance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, records)
}
