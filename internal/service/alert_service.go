package service

import (
	"context"
	"time"

	"guild-overlay/internal/model"
)

// AlertService flags events starting within the configured lead window. It is
// recomputed on every call and stores nothing.
type AlertService struct {
	events EventStore
	lead   time.Duration
	now    func() time.Time
}

func NewAlertService(events EventStore, lead time.Duration) *AlertService {
	return &AlertService{
		events: events,
		lead:   lead,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *AlertService) List(ctx context.Context) ([]model.Alert, error) {
	return s.ListAt(ctx, s.now())
}

// ListAt evaluates the window as seen from now.
func (s *AlertService) ListAt(ctx context.Context, now time.Time) ([]model.Alert, error) {
	windowEnd := now.Add(s.lead)
	candidates, err := s.events.List(ctx, model.EventFilter{StartFrom: &now, StartTo: &windowEnd})
	if err != nil {
		return nil, err
	}
	return model.DeriveAlerts(now, s.lead, candidates), nil
}
