package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"guild-overlay/internal/metrics"
	"guild-overlay/internal/model"
	"guild-overlay/internal/notify"
	"guild-overlay/pkg/apierror"
)

const (
	maxItemNameLength = 255
	maxLocationLength = 255
)

// CraftingStore persists crafting requests. Mutate must serialise concurrent
// calls for the same request id.
type CraftingStore interface {
	Create(ctx context.Context, req *model.CraftingRequest) error
	Get(ctx context.Context, id int64) (model.CraftingRequest, error)
	List(ctx context.Context, filter model.CraftingFilter) ([]model.CraftingRequest, error)
	Mutate(ctx context.Context, id int64, fn func(*model.CraftingRequest) error) (model.CraftingRequest, error)
}

type CraftingService struct {
	store     CraftingStore
	publisher notify.Publisher
	metrics   metrics.Recorder
	now       func() time.Time
}

func NewCraftingService(store CraftingStore, publisher notify.Publisher, recorder metrics.Recorder) *CraftingService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &CraftingService{
		store:     store,
		publisher: publisher,
		metrics:   recorder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *CraftingService) Create(ctx context.Context, requester model.Actor, input model.CreateCraftingRequest) (model.CraftingRequest, error) {
	itemName := strings.TrimSpace(input.ItemName)
	if itemName == "" {
		return model.CraftingRequest{}, apierror.BadRequest("item_name is required", "item_name")
	}
	if utf8.RuneCountInString(itemName) > maxItemNameLength {
		return model.CraftingRequest{}, apierror.BadRequest("item_name is too long", "item_name")
	}
	if input.Quantity < 1 {
		return model.CraftingRequest{}, apierror.BadRequest("quantity must be at least 1", "quantity")
	}

	req := model.CraftingRequest{
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
		ItemName:      itemName,
		Quantity:      input.Quantity,
		Notes:         trimOptional(input.Notes),
		Status:        model.CraftingPending,
	}
	if err := s.store.Create(ctx, &req); err != nil {
		return model.CraftingRequest{}, err
	}

	s.recorded(notify.TypeCraftingCreated, "created", requester.ID, req)
	return req, nil
}

// List returns every request, optionally narrowed to one status.
func (s *CraftingService) List(ctx context.Context, status string) ([]model.CraftingRequest, error) {
	filter := model.CraftingFilter{}
	if status != "" {
		filter.Status = model.CraftingStatus(strings.ToLower(status))
		if !filter.Status.Valid() {
			return nil, apierror.BadRequest("unknown status filter", status)
		}
	}
	return s.store.List(ctx, filter)
}

// ListMine returns the requests the user asked for or is crafting.
func (s *CraftingService) ListMine(ctx context.Context, userID string) ([]model.CraftingRequest, error) {
	return s.store.List(ctx, model.CraftingFilter{ParticipantID: userID})
}

func (s *CraftingService) Get(ctx context.Context, id int64) (model.CraftingRequest, error) {
	return s.store.Get(ctx, id)
}

func (s *CraftingService) Claim(ctx context.Context, id int64, crafter model.Actor, input model.ClaimCraftingRequest) (model.CraftingRequest, error) {
	location := strings.TrimSpace(input.Location)
	if location == "" {
		return model.CraftingRequest{}, apierror.BadRequest("location is required", "location")
	}
	if utf8.RuneCountInString(location) > maxLocationLength {
		return model.CraftingRequest{}, apierror.BadRequest("location is too long", "location")
	}
	if input.MeetAt.IsZero() {
		return model.CraftingRequest{}, apierror.BadRequest("meet_at is required", "meet_at")
	}

	meet := model.MeetInfo{MeetAt: input.MeetAt, Location: location}
	if input.EstimatedCompletion != nil {
		eta := input.EstimatedCompletion.UTC()
		meet.EstimatedCompletion = &eta
	}

	req, err := s.store.Mutate(ctx, id, func(r *model.CraftingRequest) error {
		return r.Claim(crafter, meet, s.now())
	})
	if err != nil {
		return model.CraftingRequest{}, err
	}

	s.recorded(notify.TypeCraftingClaimed, "claimed", crafter.ID, req)
	return req, nil
}

func (s *CraftingService) Complete(ctx context.Context, id int64, actor model.Actor) (model.CraftingRequest, error) {
	req, err := s.store.Mutate(ctx, id, func(r *model.CraftingRequest) error {
		return r.Complete(actor.ID, s.now())
	})
	if err != nil {
		return model.CraftingRequest{}, err
	}

	s.recorded(notify.TypeCraftingCompleted, "completed", actor.ID, req)
	return req, nil
}

func (s *CraftingService) Cancel(ctx context.Context, id int64, actor model.Actor) (model.CraftingRequest, error) {
	req, err := s.store.Mutate(ctx, id, func(r *model.CraftingRequest) error {
		return r.Cancel(actor.ID, s.now())
	})
	if err != nil {
		return model.CraftingRequest{}, err
	}

	s.recorded(notify.TypeCraftingCancelled, "cancelled", actor.ID, req)
	return req, nil
}

func (s *CraftingService) recorded(typ notify.Type, transition string, actorID string, req model.CraftingRequest) {
	s.metrics.RecordTransition("crafting", transition)
	s.publisher.Publish(notify.New(typ, actorID, req))
	slog.Info("crafting request "+transition,
		"request_id", req.ID,
		"actor_id", actorID,
		"status", req.Status,
	)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
