package handler

import (
	"context"
	"net/http"

	"guild-overlay/internal/model"
)

type eventService interface {
	Create(ctx context.Context, principal *model.Principal, input model.CreateEventRequest) (model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id int64) (model.Event, error)
	Join(ctx context.Context, principal *model.Principal, id int64) (model.Event, error)
	Leave(ctx context.Context, principal *model.Principal, id int64) (model.Event, error)
	ListAttendees(ctx context.Context, id int64) ([]model.EventAttendee, error)
}

type alertService interface {
	List(ctx context.Context) ([]model.Alert, error)
}

type EventHandler struct {
	events eventService
	alerts alertService
}

func NewEventHandler(events eventService, alerts alertService) *EventHandler {
	return &EventHandler{events: events, alerts: alerts}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CreateEventRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.events.Create(r.Context(), principal, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "event_id")
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, event)
}

func (h *EventHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.events.Join)
}

func (h *EventHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.events.Leave)
}

func (h *EventHandler) attendance(w http.ResponseWriter, r *http.Request, apply func(context.Context, *model.Principal, int64) (model.Event, error)) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "event_id")
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := apply(r.Context(), principal, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, event)
}

func (h *EventHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "event_id")
	if err != nil {
		writeError(w, err)
		return
	}

	attendees, err := h.events.ListAttendees(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, attendees)
}

// Alerts lists events starting within the lead window.
func (h *EventHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, alerts)
}
