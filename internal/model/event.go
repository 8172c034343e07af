package model

import (
	"sort"
	"time"
)

type Event struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     *string         `json:"description"`
	StartAt         time.Time       `json:"start_at"`
	Timezone        *string         `json:"timezone"`
	CreatedBy       string          `json:"created_by"`
	GuildID         *string         `json:"guild_id"`
	RequiredRoleIDs []string        `json:"required_role_ids"`
	CreatedAt       time.Time       `json:"-"`
	Attendees       []EventAttendee `json:"attendees,omitempty"`
}

type EventAttendee struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"-"`
}

type CreateEventRequest struct {
	Title           string    `json:"title"`
	Description     *string   `json:"description"`
	StartAt         time.Time `json:"start_at"`
	Timezone        *string   `json:"timezone"`
	RequiredRoleIDs []string  `json:"required_role_ids"`
}

// EventFilter bounds event listings by start time. Both bounds are inclusive
// and optional.
type EventFilter struct {
	StartFrom *time.Time
	StartTo   *time.Time
}

// Alert flags an event that starts within the lead window.
type Alert struct {
	EventID         int64     `json:"event_id"`
	Title           string    `json:"title"`
	StartAt         time.Time `json:"start_at"`
	LeadMinutes     int       `json:"lead_minutes"`
	StartsInSeconds int64     `json:"starts_in_seconds"`
}

// DeriveAlerts returns alerts for the events starting within [now, now+lead],
// ordered by start time. Both bounds are inclusive.
func DeriveAlerts(now time.Time, lead time.Duration, events []Event) []Alert {
	windowEnd := now.Add(lead)
	alerts := make([]Alert, 0)
	for _, e := range events {
		if e.StartAt.Before(now) || e.StartAt.After(windowEnd) {
			continue
		}
		alerts = append(alerts, Alert{
			EventID:         e.ID,
			Title:           e.Title,
			StartAt:         e.StartAt,
			LeadMinutes:     int(lead / time.Minute),
			StartsInSeconds: int64(e.StartAt.Sub(now) / time.Second),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].StartAt.Before(alerts[j].StartAt)
	})
	return alerts
}
