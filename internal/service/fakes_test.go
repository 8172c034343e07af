package service

import (
	"context"
	"sort"
	"sync"

	"guild-overlay/internal/model"
	"guild-overlay/internal/notify"
)

// memoryCraftingStore holds requests in memory. Mutate takes the store lock
// for the whole read-modify-write, as the row lock does in Postgres.
type memoryCraftingStore struct {
	mu          sync.Mutex
	nextID      int64
	nextAssign  int64
	requests    map[int64]model.CraftingRequest
	assignments map[int64][]model.CraftingAssignment
}

func newMemoryCraftingStore() *memoryCraftingStore {
	return &memoryCraftingStore{
		requests:    map[int64]model.CraftingRequest{},
		assignments: map[int64][]model.CraftingAssignment{},
	}
}

func (s *memoryCraftingStore) Create(_ context.Context, req *model.CraftingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.ID = s.nextID
	s.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (s *memoryCraftingStore) Get(_ context.Context, id int64) (model.CraftingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return model.CraftingRequest{}, model.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (s *memoryCraftingStore) List(_ context.Context, filter model.CraftingFilter) ([]model.CraftingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CraftingRequest, 0)
	for _, req := range s.requests {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.ParticipantID != "" && !req.InvolvesUser(filter.ParticipantID) {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memoryCraftingStore) Mutate(_ context.Context, id int64, fn func(*model.CraftingRequest) error) (model.CraftingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.requests[id]
	if !ok {
		return model.CraftingRequest{}, model.ErrRequestNotFound
	}
	working := cloneRequest(stored)
	if err := fn(&working); err != nil {
		return model.CraftingRequest{}, err
	}

	if a := working.Assignment; a != nil {
		if a.ID == 0 {
			for _, existing := range s.assignments[id] {
				if existing.Status != model.AssignmentCancelled {
					return model.CraftingRequest{}, model.ErrInvalidState
				}
			}
			s.nextAssign++
			a.ID = s.nextAssign
			s.assignments[id] = append(s.assignments[id], *a)
		} else {
			for i := range s.assignments[id] {
				if s.assignments[id][i].ID == a.ID {
					s.assignments[id][i] = *a
				}
			}
		}
	}

	s.requests[id] = cloneRequest(working)
	return working, nil
}

func (s *memoryCraftingStore) assignmentCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assignments[id])
}

func cloneRequest(req model.CraftingRequest) model.CraftingRequest {
	if req.Assignment != nil {
		a := *req.Assignment
		req.Assignment = &a
	}
	return req
}

type memoryEventStore struct {
	mu        sync.Mutex
	nextID    int64
	nextAtt   int64
	events    map[int64]model.Event
	attendees map[int64][]model.EventAttendee
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{
		events:    map[int64]model.Event{},
		attendees: map[int64][]model.EventAttendee{},
	}
}

func (s *memoryEventStore) Create(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	event.ID = s.nextID
	s.events[event.ID] = *event
	return nil
}

func (s *memoryEventStore) Get(_ context.Context, id int64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return model.Event{}, model.ErrEventNotFound
	}
	return event, nil
}

func (s *memoryEventStore) List(_ context.Context, filter model.EventFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, 0)
	for _, event := range s.events {
		if filter.StartFrom != nil && event.StartAt.Before(*filter.StartFrom) {
			continue
		}
		if filter.StartTo != nil && event.StartAt.After(*filter.StartTo) {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *memoryEventStore) ListAttendees(_ context.Context, eventIDs ...int64) (map[int64][]model.EventAttendee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64][]model.EventAttendee{}
	for _, id := range eventIDs {
		if len(s.attendees[id]) > 0 {
			out[id] = append([]model.EventAttendee(nil), s.attendees[id]...)
		}
	}
	return out, nil
}

func (s *memoryEventStore) AddAttendee(_ context.Context, attendee model.EventAttendee) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[attendee.EventID]; !ok {
		return false, model.ErrEventNotFound
	}
	for _, existing := range s.attendees[attendee.EventID] {
		if existing.UserID == attendee.UserID {
			return false, nil
		}
	}
	s.nextAtt++
	attendee.ID = s.nextAtt
	s.attendees[attendee.EventID] = append(s.attendees[attendee.EventID], attendee)
	return true, nil
}

func (s *memoryEventStore) RemoveAttendee(_ context.Context, eventID int64, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.attendees[eventID]
	for i, existing := range list {
		if existing.UserID == userID {
			s.attendees[eventID] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (p *capturePublisher) Publish(n notify.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *capturePublisher) Types() []notify.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Type, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Type)
	}
	return out
}
