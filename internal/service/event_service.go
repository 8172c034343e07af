package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"guild-overlay/internal/metrics"
	"guild-overlay/internal/model"
	"guild-overlay/internal/notify"
	"guild-overlay/internal/policy"
	"guild-overlay/pkg/apierror"
)

const (
	maxEventTitleLength = 255
	maxTimezoneLength   = 64
)

type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	Get(ctx context.Context, id int64) (model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]model.Event, error)
	ListAttendees(ctx context.Context, eventIDs ...int64) (map[int64][]model.EventAttendee, error)
	AddAttendee(ctx context.Context, attendee model.EventAttendee) (bool, error)
	RemoveAttendee(ctx context.Context, eventID int64, userID string) (bool, error)
}

type EventService struct {
	store        EventStore
	publisher    notify.Publisher
	metrics      metrics.Recorder
	eventRoleIDs []string
}

// NewEventService gates attendance on eventRoleIDs for events that do not
// name their own required roles.
func NewEventService(store EventStore, publisher notify.Publisher, recorder metrics.Recorder, eventRoleIDs []string) *EventService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &EventService{
		store:        store,
		publisher:    publisher,
		metrics:      recorder,
		eventRoleIDs: append([]string(nil), eventRoleIDs...),
	}
}

func (s *EventService) Create(ctx context.Context, principal *model.Principal, input model.CreateEventRequest) (model.Event, error) {
	if !principal.HasPermission(string(policy.PermissionCreateEvents)) {
		return model.Event{}, fmt.Errorf("%w: not permitted to create events", model.ErrForbidden)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Event{}, apierror.BadRequest("title is required", "title")
	}
	if utf8.RuneCountInString(title) > maxEventTitleLength {
		return model.Event{}, apierror.BadRequest("title is too long", "title")
	}
	if input.StartAt.IsZero() {
		return model.Event{}, apierror.BadRequest("start_at is required", "start_at")
	}

	timezone := trimOptional(input.Timezone)
	if timezone != nil {
		if len(*timezone) > maxTimezoneLength {
			return model.Event{}, apierror.BadRequest("timezone is too long", "timezone")
		}
		if _, err := time.LoadLocation(*timezone); err != nil {
			return model.Event{}, apierror.BadRequest("unknown timezone", *timezone)
		}
	}

	event := model.Event{
		Title:           title,
		Description:     trimOptional(input.Description),
		StartAt:         input.StartAt.UTC(),
		Timezone:        timezone,
		CreatedBy:       principal.UserID,
		RequiredRoleIDs: compactIDs(input.RequiredRoleIDs),
	}
	if len(event.RequiredRoleIDs) == 0 {
		event.RequiredRoleIDs = append([]string{}, s.eventRoleIDs...)
	}
	if guildID := principal.PrimaryGuildID(); guildID != "" {
		event.GuildID = &guildID
	}

	if err := s.store.Create(ctx, &event); err != nil {
		return model.Event{}, err
	}

	s.recorded(notify.TypeEventCreated, "created", principal.UserID, event)
	return event, nil
}

// List returns all events with their attendees, soonest first.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.List(ctx, model.EventFilter{})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	attendees, err := s.store.ListAttendees(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Attendees = nonNilAttendees(attendees[events[i].ID])
	}
	return events, nil
}

func (s *EventService) Get(ctx context.Context, id int64) (model.Event, error) {
	event, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	return s.withAttendees(ctx, event)
}

// Join adds the caller to the event. Joining twice leaves a single
// attendance record and is not an error.
func (s *EventService) Join(ctx context.Context, principal *model.Principal, id int64) (model.Event, error) {
	event, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if err := s.checkRoles(event, principal); err != nil {
		return model.Event{}, err
	}

	inserted, err := s.store.AddAttendee(ctx, model.EventAttendee{
		EventID:  event.ID,
		UserID:   principal.UserID,
		Username: principal.DisplayName,
	})
	if err != nil {
		return model.Event{}, err
	}
	if inserted {
		s.recorded(notify.TypeEventJoined, "joined", principal.UserID, event)
	}

	return s.withAttendees(ctx, event)
}

// Leave removes the caller from the event. Leaving an event never joined is
// a no-op.
func (s *EventService) Leave(ctx context.Context, principal *model.Principal, id int64) (model.Event, error) {
	event, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}

	removed, err := s.store.RemoveAttendee(ctx, event.ID, principal.UserID)
	if err != nil {
		return model.Event{}, err
	}
	if removed {
		s.recorded(notify.TypeEventLeft, "left", principal.UserID, event)
	}

	return s.withAttendees(ctx, event)
}

func (s *EventService) ListAttendees(ctx context.Context, id int64) ([]model.EventAttendee, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	attendees, err := s.store.ListAttendees(ctx, id)
	if err != nil {
		return nil, err
	}
	return nonNilAttendees(attendees[id]), nil
}

func (s *EventService) checkRoles(event model.Event, principal *model.Principal) error {
	required := event.RequiredRoleIDs
	if len(required) == 0 {
		required = s.eventRoleIDs
	}
	if len(required) == 0 {
		return nil
	}

	guildID := principal.PrimaryGuildID()
	if event.GuildID != nil && *event.GuildID != "" {
		guildID = *event.GuildID
	}
	if guildID == "" {
		return nil
	}

	if !policy.CanAttend(required, principal.RolesIn(guildID)) {
		return model.ErrMissingRole
	}
	return nil
}

func (s *EventService) withAttendees(ctx context.Context, event model.Event) (model.Event, error) {
	attendees, err := s.store.ListAttendees(ctx, event.ID)
	if err != nil {
		return model.Event{}, err
	}
	event.Attendees = nonNilAttendees(attendees[event.ID])
	return event, nil
}

func (s *EventService) recorded(typ notify.Type, transition string, actorID string, event model.Event) {
	s.metrics.RecordTransition("event", transition)
	s.publisher.Publish(notify.New(typ, actorID, map[string]any{
		"event_id": event.ID,
		"title":    event.Title,
		"start_at": event.StartAt,
	}))
	slog.Info("event "+transition, "event_id", event.ID, "actor_id", actorID)
}

func nonNilAttendees(list []model.EventAttendee) []model.EventAttendee {
	if list == nil {
		return []model.EventAttendee{}
	}
	return list
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
