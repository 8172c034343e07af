package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"guild-overlay/internal/model"
)

var craftingRowColumns = []string{
	"id", "requester_id", "requester_name", "item_name", "quantity",
	"notes", "status", "created_at", "updated_at",
	"a_id", "crafter_id", "crafter_name", "meet_at", "location",
	"estimated_completion", "a_status",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func ptrTo[T any](v T) *T { return &v }

func pendingRow(id int64, created time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(craftingRowColumns).AddRow(
		id, "requester-1", "Rhea", "Iron Ingot", 5,
		nil, "pending", created, created,
		nil, nil, nil, nil, nil, nil, nil,
	)
}

func TestCraftingRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO craft_requests`).
		WithArgs("requester-1", "Rhea", "Iron Ingot", 5, pgxmock.AnyArg(), "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	req := &model.CraftingRequest{
		RequesterID:   "requester-1",
		RequesterName: "Rhea",
		ItemName:      "Iron Ingot",
		Quantity:      5,
		Status:        model.CraftingPending,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.Equal(t, int64(7), req.ID)
	require.Equal(t, now, req.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_Get(t *testing.T) {
	now := time.Now().UTC()

	t.Run("with assignment", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewCraftingRepository(mock)

		notes := "bring ore"
		rows := pgxmock.NewRows(craftingRowColumns).AddRow(
			int64(3), "requester-1", "Rhea", "Iron Ingot", 5,
			&notes, "claimed", now, now,
			ptrTo(int64(11)), ptrTo("crafter-1"), ptrTo("Cass"), ptrTo(now.Add(time.Hour)), ptrTo("Forge"), nil, ptrTo("active"),
		)
		mock.ExpectQuery(`FROM craft_requests r\s+LEFT JOIN craft_assignments a .* WHERE r\.id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(rows)

		req, err := repo.Get(context.Background(), 3)
		require.NoError(t, err)
		require.Equal(t, model.CraftingClaimed, req.Status)
		require.Equal(t, "bring ore", *req.Notes)
		require.NotNil(t, req.Assignment)
		require.Equal(t, int64(11), req.Assignment.ID)
		require.Equal(t, "crafter-1", req.Assignment.CrafterID)
		require.Equal(t, "Forge", req.Assignment.Location)
		require.Equal(t, model.AssignmentActive, req.Assignment.Status)
		require.Nil(t, req.Assignment.EstimatedCompletion)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewCraftingRepository(mock)

		mock.ExpectQuery(`FROM craft_requests r`).
			WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows(craftingRowColumns))

		_, err := repo.Get(context.Background(), 99)
		require.ErrorIs(t, err, model.ErrRequestNotFound)
	})
}

func TestCraftingRepository_ListFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`WHERE r\.status = \$1 AND \(r\.requester_id = \$2 OR a\.crafter_id = \$3\) ORDER BY r\.created_at DESC, r\.id DESC`).
		WithArgs("pending", "requester-1", "requester-1").
		WillReturnRows(pendingRow(1, now))

	requests, err := repo.List(context.Background(), model.CraftingFilter{
		Status:        model.CraftingPending,
		ParticipantID: "requester-1",
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Nil(t, requests[0].Assignment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_MutateClaim(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE r\.id = \$1 FOR UPDATE OF r`).
		WithArgs(int64(1)).
		WillReturnRows(pendingRow(1, now))
	mock.ExpectExec(`UPDATE craft_requests SET status = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs(int64(1), "claimed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO craft_assignments`).
		WithArgs(int64(1), "crafter-1", "Cass", pgxmock.AnyArg(), "Forge",
			pgxmock.AnyArg(), "active", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(21)))
	mock.ExpectCommit()

	req, err := repo.Mutate(context.Background(), 1, func(r *model.CraftingRequest) error {
		return r.Claim(model.Actor{ID: "crafter-1", Name: "Cass"},
			model.MeetInfo{MeetAt: now.Add(time.Hour), Location: "Forge"}, now)
	})
	require.NoError(t, err)
	require.Equal(t, model.CraftingClaimed, req.Status)
	require.Equal(t, int64(21), req.Assignment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_MutateComplete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF r`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(craftingRowColumns).AddRow(
			int64(2), "requester-1", "Rhea", "Iron Ingot", 5,
			nil, "claimed", now, now,
			ptrTo(int64(12)), ptrTo("crafter-1"), ptrTo("Cass"), ptrTo(now), ptrTo("Forge"), nil, ptrTo("active"),
		))
	mock.ExpectExec(`UPDATE craft_requests`).
		WithArgs(int64(2), "completed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE craft_assignments SET status = \$2`).
		WithArgs(int64(12), "fulfilled", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	req, err := repo.Mutate(context.Background(), 2, func(r *model.CraftingRequest) error {
		return r.Complete("crafter-1", now)
	})
	require.NoError(t, err)
	require.Equal(t, model.CraftingCompleted, req.Status)
	require.Equal(t, model.AssignmentFulfilled, req.Assignment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_MutateRejectedTransitionRollsBack(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF r`).WithArgs(int64(1)).WillReturnRows(pendingRow(1, now))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), 1, func(r *model.CraftingRequest) error {
		return r.Complete("crafter-1", now)
	})
	require.ErrorIs(t, err, model.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_MutateDuplicateAssignment(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF r`).WithArgs(int64(1)).WillReturnRows(pendingRow(1, now))
	mock.ExpectExec(`UPDATE craft_requests`).
		WithArgs(int64(1), "claimed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO craft_assignments`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), 1, func(r *model.CraftingRequest) error {
		return r.Claim(model.Actor{ID: "crafter-2", Name: "Dax"},
			model.MeetInfo{MeetAt: now, Location: "Dock"}, now)
	})
	require.ErrorIs(t, err, model.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCraftingRepository_MutateMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewCraftingRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF r`).WithArgs(int64(5)).WillReturnRows(pgxmock.NewRows(craftingRowColumns))
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), 5, func(*model.CraftingRequest) error { return nil })
	require.ErrorIs(t, err, model.ErrRequestNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
