package model

import "time"

// RosterMember and AttendanceRecord back the read-only overlay tables kept
// from the guild's earlier tooling.
type RosterMember struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Role *string `json:"role"`
	CP   *int    `json:"cp"`
}

type AttendanceRecord struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	EventDate time.Time `json:"event_date"`
	Members   []string  `json:"members"`
}
