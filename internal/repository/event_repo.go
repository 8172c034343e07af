package repository

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"guild-overlay/internal/model"
)

var eventColumns = []string{
	"id", "title", "description", "start_at", "timezone",
	"created_by", "guild_id", "required_role_ids", "created_at",
}

type EventRepository struct {
	pool dbPool
}

func NewEventRepository(pool dbPool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO events (title, description, start_at, timezone, created_by, guild_id, required_role_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		event.Title, event.Description, event.StartAt, event.Timezone,
		event.CreatedBy, event.GuildID, event.RequiredRoleIDs).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepository) Get(ctx context.Context, id int64) (model.Event, error) {
	sqlStmt, args, err := psql.Select(eventColumns...).From("events").
		Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Event{}, fmt.Errorf("build event query: %w", err)
	}

	event, err := scanEvent(r.pool.QueryRow(ctx, sqlStmt, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, model.ErrEventNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// List returns events ordered by start time.
func (r *EventRepository) List(ctx context.Context, filter model.EventFilter) ([]model.Event, error) {
	query := psql.Select(eventColumns...).From("events").OrderBy("start_at ASC", "id ASC")
	if filter.StartFrom != nil {
		query = query.Where(squirrel.GtOrEq{"start_at": *filter.StartFrom})
	}
	if filter.StartTo != nil {
		query = query.Where(squirrel.LtOrEq{"start_at": *filter.StartTo})
	}

	sqlStmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build event list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListAttendees returns attendees of the given events keyed by event id, in
// join order.
func (r *EventRepository) ListAttendees(ctx context.Context, eventIDs ...int64) (map[int64][]model.EventAttendee, error) {
	out := make(map[int64][]model.EventAttendee, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	sqlStmt, args, err := psql.Select("id", "event_id", "user_id", "username", "created_at").
		From("event_attendees").
		Where(squirrel.Eq{"event_id": eventIDs}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attendee query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.EventAttendee
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.Username, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out[a.EventID] = append(out[a.EventID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return out, nil
}

// AddAttendee records the pair once. It reports whether a row was inserted;
// a repeated join leaves the existing row untouched.
func (r *EventRepository) AddAttendee(ctx context.Context, attendee model.EventAttendee) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO event_attendees (event_id, user_id, username)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		attendee.EventID, attendee.UserID, attendee.Username)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return false, model.ErrEventNotFound
	}
	if err != nil {
		return false, fmt.Errorf("add attendee: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RemoveAttendee deletes the pair if present and reports whether it was.
func (r *EventRepository) RemoveAttendee(ctx context.Context, eventID int64, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`,
		eventID, userID)
	if err != nil {
		return false, fmt.Errorf("remove attendee: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartAt, &e.Timezone,
		&e.CreatedBy, &e.GuildID, &e.RequiredRoleIDs, &e.CreatedAt)
	if err != nil {
		return model.Event{}, err
	}
	if e.RequiredRoleIDs == nil {
		e.RequiredRoleIDs = []string{}
	}
	return e, nil
}
