package service

import (
	"context"

	"guild-overlay/internal/model"
)

type OverlayStore interface {
	ListMembers(ctx context.Context) ([]model.RosterMember, error)
	ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error)
}

// OverlayService serves the read-only roster data shown by the in-game
// overlay.
type OverlayService struct {
	roster OverlayStore
	events EventStore
}

func NewOverlayService(roster OverlayStore, events EventStore) *OverlayService {
	return &OverlayService{roster: roster, events: events}
}

func (s *OverlayService) Events(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx, model.EventFilter{})
}

func (s *OverlayService) Roster(ctx context.Context) ([]model.RosterMember, error) {
	return s.roster.ListMembers(ctx)
}

func (s *OverlayService) Attendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	return s.roster.ListAttendance(ctx)
}
