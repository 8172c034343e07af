package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"guild-overlay/internal/model"
)

var craftingColumns = []string{
	"r.id", "r.requester_id", "r.requester_name", "r.item_name", "r.quantity",
	"r.notes", "r.status", "r.created_at", "r.updated_at",
	"a.id", "a.crafter_id", "a.crafter_name", "a.meet_at", "a.location",
	"a.estimated_completion", "a.status",
}

const craftingSelect = `SELECT r.id, r.requester_id, r.requester_name, r.item_name, r.quantity,
        r.notes, r.status, r.created_at, r.updated_at,
        a.id, a.crafter_id, a.crafter_name, a.meet_at, a.location,
        a.estimated_completion, a.status
 FROM craft_requests r
 LEFT JOIN craft_assignments a ON a.request_id = r.id`

type CraftingRepository struct {
	pool dbPool
}

func NewCraftingRepository(pool dbPool) *CraftingRepository {
	return &CraftingRepository{pool: pool}
}

func (r *CraftingRepository) Create(ctx context.Context, req *model.CraftingRequest) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO craft_requests (requester_id, requester_name, item_name, quantity, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		req.RequesterID, req.RequesterName, req.ItemName, req.Quantity, req.Notes, string(req.Status)).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create crafting request: %w", err)
	}
	return nil
}

func (r *CraftingRepository) Get(ctx context.Context, id int64) (model.CraftingRequest, error) {
	req, err := scanCraftingRequest(r.pool.QueryRow(ctx, craftingSelect+` WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CraftingRequest{}, model.ErrRequestNotFound
	}
	if err != nil {
		return model.CraftingRequest{}, fmt.Errorf("get crafting request: %w", err)
	}
	return req, nil
}

func (r *CraftingRepository) List(ctx context.Context, filter model.CraftingFilter) ([]model.CraftingRequest, error) {
	query := psql.Select(craftingColumns...).
		From("craft_requests r").
		LeftJoin("craft_assignments a ON a.request_id = r.id").
		OrderBy("r.created_at DESC", "r.id DESC")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"r.status": string(filter.Status)})
	}
	if filter.ParticipantID != "" {
		query = query.Where(squirrel.Or{
			squirrel.Eq{"r.requester_id": filter.ParticipantID},
			squirrel.Eq{"a.crafter_id": filter.ParticipantID},
		})
	}

	sqlStmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build crafting list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sqlStmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list crafting requests: %w", err)
	}
	defer rows.Close()

	requests := make([]model.CraftingRequest, 0)
	for rows.Next() {
		req, err := scanCraftingRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crafting request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crafting requests: %w", err)
	}
	return requests, nil
}

// Mutate loads the request under a row lock, lets fn apply a transition and
// writes the result back in the same transaction. Concurrent callers on the
// same request are serialised, so each fn observes the committed outcome of
// the previous one. A write that would create a second live assignment is
// reported as model.ErrInvalidState.
func (r *CraftingRepository) Mutate(ctx context.Context, id int64, fn func(*model.CraftingRequest) error) (model.CraftingRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.CraftingRequest{}, fmt.Errorf("begin crafting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := scanCraftingRequest(tx.QueryRow(ctx, craftingSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CraftingRequest{}, model.ErrRequestNotFound
	}
	if err != nil {
		return model.CraftingRequest{}, fmt.Errorf("lock crafting request: %w", err)
	}

	if err := fn(&req); err != nil {
		return model.CraftingRequest{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE craft_requests SET status = $2, updated_at = $3 WHERE id = $1`,
		req.ID, string(req.Status), req.UpdatedAt); err != nil {
		return model.CraftingRequest{}, fmt.Errorf("update crafting request: %w", err)
	}

	if a := req.Assignment; a != nil {
		if a.ID == 0 {
			err = tx.QueryRow(ctx,
				`INSERT INTO craft_assignments (request_id, crafter_id, crafter_name, meet_at, location,
				  estimated_completion, status, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				 RETURNING id`,
				req.ID, a.CrafterID, a.CrafterName, a.MeetAt, a.Location,
				a.EstimatedCompletion, string(a.Status), a.CreatedAt, a.UpdatedAt).
				Scan(&a.ID)
			if pgErrorCode(err) == pgUniqueViolation {
				return model.CraftingRequest{}, fmt.Errorf("%w: request already has a crafter", model.ErrInvalidState)
			}
			if err != nil {
				return model.CraftingRequest{}, fmt.Errorf("create crafting assignment: %w", err)
			}
		} else if _, err := tx.Exec(ctx,
			`UPDATE craft_assignments SET status = $2, estimated_completion = $3, updated_at = $4 WHERE id = $1`,
			a.ID, string(a.Status), a.EstimatedCompletion, a.UpdatedAt); err != nil {
			return model.CraftingRequest{}, fmt.Errorf("update crafting assignment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.CraftingRequest{}, fmt.Errorf("commit crafting transaction: %w", err)
	}
	return req, nil
}

func scanCraftingRequest(row pgx.Row) (model.CraftingRequest, error) {
	var req model.CraftingRequest
	var status string
	var (
		assignmentID        *int64
		crafterID           *string
		crafterName         *string
		meetAt              *time.Time
		location            *string
		estimatedCompletion *time.Time
		assignmentStatus    *string
	)

	err := row.Scan(&req.ID, &req.RequesterID, &req.RequesterName, &req.ItemName, &req.Quantity,
		&req.Notes, &status, &req.CreatedAt, &req.UpdatedAt,
		&assignmentID, &crafterID, &crafterName, &meetAt, &location,
		&estimatedCompletion, &assignmentStatus)
	if err != nil {
		return model.CraftingRequest{}, err
	}
	req.Status = model.CraftingStatus(status)

	if assignmentID != nil {
		a := &model.CraftingAssignment{
			ID:                  *assignmentID,
			RequestID:           req.ID,
			EstimatedCompletion: estimatedCompletion,
		}
		if crafterID != nil {
			a.CrafterID = *crafterID
		}
		if crafterName != nil {
			a.CrafterName = *crafterName
		}
		if meetAt != nil {
			a.MeetAt = *meetAt
		}
		if location != nil {
			a.Location = *location
		}
		if assignmentStatus != nil {
			a.Status = model.AssignmentStatus(*assignmentStatus)
		}
		req.Assignment = a
	}
	return req, nil
}
