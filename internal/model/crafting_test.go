package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCraftingStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		from    CraftingStatus
		apply   func(CraftingStatus) (CraftingStatus, error)
		want    CraftingStatus
		wantErr bool
	}{
		{"claim pending", CraftingPending, CraftingStatus.Claim, CraftingClaimed, false},
		{"claim claimed", CraftingClaimed, CraftingStatus.Claim, CraftingClaimed, true},
		{"claim completed", CraftingCompleted, CraftingStatus.Claim, CraftingCompleted, true},
		{"complete claimed", CraftingClaimed, CraftingStatus.Complete, CraftingCompleted, false},
		{"complete pending", CraftingPending, CraftingStatus.Complete, CraftingPending, true},
		{"complete cancelled", CraftingCancelled, CraftingStatus.Complete, CraftingCancelled, true},
		{"cancel pending", CraftingPending, CraftingStatus.Cancel, CraftingCancelled, false},
		{"cancel claimed", CraftingClaimed, CraftingStatus.Cancel, CraftingCancelled, false},
		{"cancel completed", CraftingCompleted, CraftingStatus.Cancel, CraftingCompleted, true},
		{"cancel cancelled", CraftingCancelled, CraftingStatus.Cancel, CraftingCancelled, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.apply(tc.from)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidState)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCraftingRequestLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	meet := MeetInfo{MeetAt: now.Add(time.Hour), Location: " Calpheon bank "}
	requester := Actor{ID: "r-1", Name: "Requester"}
	crafter := Actor{ID: "c-1", Name: "Crafter"}

	t.Run("requester cannot claim own request", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.ErrorIs(t, req.Claim(requester, meet, now), ErrSelfAssignment)
		require.Equal(t, CraftingPending, req.Status)
		require.Nil(t, req.Assignment)
	})

	t.Run("self assignment is reported even after another crafter claimed", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.NoError(t, req.Claim(crafter, meet, now))
		require.ErrorIs(t, req.Claim(requester, meet, now), ErrSelfAssignment)
	})

	t.Run("claim requires a location", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		err := req.Claim(crafter, MeetInfo{MeetAt: now, Location: "  "}, now)
		require.ErrorIs(t, err, ErrInvalidInput)
		require.Equal(t, CraftingPending, req.Status)
	})

	t.Run("claim then complete by crafter", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.NoError(t, req.Claim(crafter, meet, now))
		require.Equal(t, CraftingClaimed, req.Status)
		require.NotNil(t, req.Assignment)
		require.Equal(t, "Calpheon bank", req.Assignment.Location)
		require.Equal(t, AssignmentActive, req.Assignment.Status)

		require.NoError(t, req.Complete(crafter.ID, now.Add(2*time.Hour)))
		require.Equal(t, CraftingCompleted, req.Status)
		require.Equal(t, AssignmentFulfilled, req.Assignment.Status)
		require.NotNil(t, req.Assignment.EstimatedCompletion)

		err := req.Cancel(requester.ID, now.Add(3*time.Hour))
		require.ErrorIs(t, err, ErrInvalidState)
		require.Equal(t, CraftingCompleted, req.Status)
	})

	t.Run("complete on pending request is an invalid transition", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.ErrorIs(t, req.Complete(requester.ID, now), ErrInvalidState)
	})

	t.Run("outsider cannot complete", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.NoError(t, req.Claim(crafter, meet, now))
		require.ErrorIs(t, req.Complete("someone-else", now), ErrNotParticipant)
		require.Equal(t, CraftingClaimed, req.Status)
	})

	t.Run("requester may complete", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.NoError(t, req.Claim(crafter, meet, now))
		require.NoError(t, req.Complete(requester.ID, now))
	})

	t.Run("only requester cancels and assignment follows", func(t *testing.T) {
		req := &CraftingRequest{ID: 1, RequesterID: requester.ID, Status: CraftingPending}
		require.NoError(t, req.Claim(crafter, meet, now))
		require.ErrorIs(t, req.Cancel(crafter.ID, now), ErrNotParticipant)
		require.NoError(t, req.Cancel(requester.ID, now))
		require.Equal(t, CraftingCancelled, req.Status)
		require.Equal(t, AssignmentCancelled, req.Assignment.Status)
		require.True(t, errors.Is(req.Cancel(requester.ID, now), ErrInvalidState))
	})
}
