package model

import (
	"fmt"
	"strings"
	"time"
)

// CraftingStatus is the lifecycle state of a crafting request.
type CraftingStatus string

const (
	CraftingPending   CraftingStatus = "pending"
	CraftingClaimed   CraftingStatus = "claimed"
	CraftingCompleted CraftingStatus = "completed"
	CraftingCancelled CraftingStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s CraftingStatus) Terminal() bool {
	return s == CraftingCompleted || s == CraftingCancelled
}

func (s CraftingStatus) Valid() bool {
	switch s {
	case CraftingPending, CraftingClaimed, CraftingCompleted, CraftingCancelled:
		return true
	}
	return false
}

// Claim moves Pending to Claimed.
func (s CraftingStatus) Claim() (CraftingStatus, error) {
	if s != CraftingPending {
		return s, transitionError(s, "claim")
	}
	return CraftingClaimed, nil
}

// Complete moves Claimed to Completed.
func (s CraftingStatus) Complete() (CraftingStatus, error) {
	if s != CraftingClaimed {
		return s, transitionError(s, "complete")
	}
	return CraftingCompleted, nil
}

// Cancel moves Pending or Claimed to Cancelled.
func (s CraftingStatus) Cancel() (CraftingStatus, error) {
	if s != CraftingPending && s != CraftingClaimed {
		return s, transitionError(s, "cancel")
	}
	return CraftingCancelled, nil
}

func transitionError(from CraftingStatus, action string) error {
	return fmt.Errorf("%w: cannot %s a %s request", ErrInvalidState, action, from)
}

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentFulfilled AssignmentStatus = "fulfilled"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

type CraftingRequest struct {
	ID            int64               `json:"id"`
	RequesterID   string              `json:"requester_id"`
	RequesterName string              `json:"requester_name"`
	ItemName      string              `json:"item_name"`
	Quantity      int                 `json:"quantity"`
	Notes         *string             `json:"notes"`
	Status        CraftingStatus      `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Assignment    *CraftingAssignment `json:"assignment"`
}

type CraftingAssignment struct {
	ID                  int64            `json:"id"`
	RequestID           int64            `json:"-"`
	CrafterID           string           `json:"crafter_id"`
	CrafterName         string           `json:"crafter_name"`
	MeetAt              time.Time        `json:"meet_at"`
	Location            string           `json:"location"`
	EstimatedCompletion *time.Time       `json:"estimated_completion"`
	Status              AssignmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"-"`
	UpdatedAt           time.Time        `json:"-"`
}

// Actor identifies who is driving a lifecycle transition.
type Actor struct {
	ID   string
	Name string
}

// MeetInfo is what a crafter commits to when claiming a request.
type MeetInfo struct {
	MeetAt              time.Time
	Location            string
	EstimatedCompletion *time.Time
}

// Claim assigns the request to crafter. The requester may never claim their
// own request, whatever state it is in.
func (r *CraftingRequest) Claim(crafter Actor, meet MeetInfo, now time.Time) error {
	if crafter.ID == r.RequesterID {
		return ErrSelfAssignment
	}

	next, err := r.Status.Claim()
	if err != nil {
		return err
	}

	location := strings.TrimSpace(meet.Location)
	if location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	if meet.MeetAt.IsZero() {
		return fmt.Errorf("%w: meet_at is required", ErrInvalidInput)
	}

	r.Status = next
	r.UpdatedAt = now
	r.Assignment = &CraftingAssignment{
		RequestID:           r.ID,
		CrafterID:           crafter.ID,
		CrafterName:         crafter.Name,
		MeetAt:              meet.MeetAt.UTC(),
		Location:            location,
		EstimatedCompletion: meet.EstimatedCompletion,
		Status:              AssignmentActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return nil
}

// Complete marks the request and its assignment as fulfilled. Only the
// crafter or the requester may complete.
func (r *CraftingRequest) Complete(actorID string, now time.Time) error {
	next, err := r.Status.Complete()
	if err != nil {
		return err
	}
	if r.Assignment == nil {
		return transitionError(r.Status, "complete")
	}
	if actorID != r.Assignment.CrafterID && actorID != r.RequesterID {
		return ErrNotParticipant
	}

	r.Status = next
	r.UpdatedAt = now
	r.Assignment.Status = AssignmentFulfilled
	r.Assignment.UpdatedAt = now
	if r.Assignment.EstimatedCompletion == nil {
		completedAt := now
		r.Assignment.EstimatedCompletion = &completedAt
	}
	return nil
}

// Cancel terminates the request. Only the requester may cancel.
func (r *CraftingRequest) Cancel(actorID string, now time.Time) error {
	next, err := r.Status.Cancel()
	if err != nil {
		return err
	}
	if actorID != r.RequesterID {
		return ErrNotParticipant
	}

	r.Status = next
	r.UpdatedAt = now
	if r.Assignment != nil {
		r.Assignment.Status = AssignmentCancelled
		r.Assignment.UpdatedAt = now
	}
	return nil
}

// InvolvesUser reports whether userID requested or is crafting the request.
func (r *CraftingRequest) InvolvesUser(userID string) bool {
	if r.RequesterID == userID {
		return true
	}
	return r.Assignment != nil && r.Assignment.CrafterID == userID
}

type CreateCraftingRequest struct {
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Notes    *string `json:"notes"`
}

type ClaimCraftingRequest struct {
	MeetAt              time.Time  `json:"meet_at"`
	Location            string     `json:"location"`
	EstimatedCompletion *time.Time `json:"estimated_completion"`
}

// CraftingFilter narrows crafting request listings.
type CraftingFilter struct {
	Status        CraftingStatus
	ParticipantID string
}
