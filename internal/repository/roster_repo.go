package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"guild-overlay/internal/model"
)

// RosterRepository reads the legacy overlay tables. They are maintained
// outside this service.
type RosterRepository struct {
	pool dbPool
}

func NewRosterRepository(pool dbPool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

func (r *RosterRepository) ListMembers(ctx context.Context) ([]model.RosterMember, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, role, cp FROM roster_members ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	members := make([]model.RosterMember, 0)
	for rows.Next() {
		var m model.RosterMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &m.CP); err != nil {
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return members, nil
}

func (r *RosterRepository) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, event_date, members FROM attendance_records ORDER BY event_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := make([]model.AttendanceRecord, 0)
	for rows.Next() {
		var rec model.AttendanceRecord
		var members []byte
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventDate, &members); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		rec.Members = []string{}
		if len(members) > 0 {
			if err := json.Unmarshal(members, &rec.Members); err != nil {
				return nil, fmt.Errorf("decode attendance members for record %d: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
