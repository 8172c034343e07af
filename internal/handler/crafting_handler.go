package handler

import (
	"context"
	"net/http"

	"guild-overlay/internal/model"
)

type craftingService interface {
	Create(ctx context.Context, requester model.Actor, input model.CreateCraftingRequest) (model.CraftingRequest, error)
	List(ctx context.Context, status string) ([]model.CraftingRequest, error)
	ListMine(ctx context.Context, userID string) ([]model.CraftingRequest, error)
	Get(ctx context.Context, id int64) (model.CraftingRequest, error)
	Claim(ctx context.Context, id int64, crafter model.Actor, input model.ClaimCraftingRequest) (model.CraftingRequest, error)
	Complete(ctx context.Context, id int64, actor model.Actor) (model.CraftingRequest, error)
	Cancel(ctx context.Context, id int64, actor model.Actor) (model.CraftingRequest, error)
}

type CraftingHandler struct {
	service craftingService
}

func NewCraftingHandler(service craftingService) *CraftingHandler {
	return &CraftingHandler{service: service}
}

func (h *CraftingHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.CreateCraftingRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), actorFromPrincipal(principal), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created)
}

// List accepts an optional ?status= filter.
func (h *CraftingHandler) List(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, requests)
}

func (h *CraftingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	requests, err := h.service.ListMine(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, requests)
}

func (h *CraftingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "request_id")
	if err != nil {
		writeError(w, err)
		return
	}

	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, request)
}

func (h *CraftingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "request_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.ClaimCraftingRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	claimed, err := h.service.Claim(r.Context(), id, actorFromPrincipal(principal), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, claimed)
}

func (h *CraftingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete)
}

func (h *CraftingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *CraftingHandler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, model.Actor) (model.CraftingRequest, error)) {
	principal, err := principalFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "request_id")
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := apply(r.Context(), id, actorFromPrincipal(principal))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated)
}
