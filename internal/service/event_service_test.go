package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-overlay/internal/model"
	"guild-overlay/internal/notify"
	"guild-overlay/pkg/apierror"
)

func organiser() *model.Principal {
	return &model.Principal{
		UserID:      "user-1",
		DisplayName: "mira#0420",
		Permissions: []string{"crafting:use", "events:create", "events:join", "overlay:view"},
		GuildIDs:    []string{"guild-a"},
		GuildRoles:  map[string][]string{"guild-a": {"role-officer"}},
	}
}

func member(id string, roles ...string) *model.Principal {
	return &model.Principal{
		UserID:      id,
		DisplayName: id,
		Permissions: []string{"crafting:use", "events:join", "overlay:view"},
		GuildIDs:    []string{"guild-a"},
		GuildRoles:  map[string][]string{"guild-a": roles},
	}
}

func newEventFixture(eventRoles ...string) (*EventService, *memoryEventStore, *capturePublisher) {
	store := newMemoryEventStore()
	publisher := &capturePublisher{}
	return NewEventService(store, publisher, &recordingMetrics{}, eventRoles), store, publisher
}

func TestEventService_Create(t *testing.T) {
	svc, _, publisher := newEventFixture("role-officer")
	tz := "Europe/Berlin"
	start := time.Date(2026, 4, 1, 19, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	event, err := svc.Create(context.Background(), organiser(), model.CreateEventRequest{
		Title:    "  Castle Siege ",
		StartAt:  start,
		Timezone: &tz,
	})
	require.NoError(t, err)
	require.Equal(t, "Castle Siege", event.Title)
	require.Equal(t, time.UTC, event.StartAt.Location())
	require.True(t, start.Equal(event.StartAt))
	require.Equal(t, "guild-a", *event.GuildID)
	require.Equal(t, []string{"role-officer"}, event.RequiredRoleIDs)
	require.Equal(t, []notify.Type{notify.TypeEventCreated}, publisher.Types())
}

func TestEventService_CreateRequiresPermission(t *testing.T) {
	svc, _, _ := newEventFixture("role-officer")

	_, err := svc.Create(context.Background(), member("user-2"), model.CreateEventRequest{
		Title:   "Raid",
		StartAt: time.Now(),
	})
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestEventService_CreateValidation(t *testing.T) {
	svc, _, _ := newEventFixture()
	bogus := "Mars/Olympus"

	cases := map[string]model.CreateEventRequest{
		"missing title":    {Title: " ", StartAt: time.Now()},
		"missing start":    {Title: "Raid"},
		"unknown timezone": {Title: "Raid", StartAt: time.Now(), Timezone: &bogus},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), organiser(), input)
			var apiErr *apierror.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, 400, apiErr.HTTPStatus)
		})
	}
}

func TestEventService_JoinTwiceKeepsOnePair(t *testing.T) {
	svc, store, publisher := newEventFixture()
	ctx := context.Background()

	event, err := svc.Create(ctx, organiser(), model.CreateEventRequest{Title: "Raid", StartAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	u := member("user-2")
	first, err := svc.Join(ctx, u, event.ID)
	require.NoError(t, err)
	require.Len(t, first.Attendees, 1)

	second, err := svc.Join(ctx, u, event.ID)
	require.NoError(t, err)
	require.Len(t, second.Attendees, 1)
	require.Equal(t, "user-2", second.Attendees[0].UserID)

	attendees, err := store.ListAttendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees[event.ID], 1)
	require.Equal(t, []notify.Type{notify.TypeEventCreated, notify.TypeEventJoined}, publisher.Types())
}

func TestEventService_ConcurrentJoins(t *testing.T) {
	svc, _, _ := newEventFixture()
	ctx := context.Background()

	event, err := svc.Create(ctx, organiser(), model.CreateEventRequest{Title: "Raid", StartAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	u := member("user-2")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Join(ctx, u, event.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	attendees, err := svc.ListAttendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
}

func TestEventService_JoinRoleGate(t *testing.T) {
	svc, _, _ := newEventFixture()
	ctx := context.Background()

	event, err := svc.Create(ctx, organiser(), model.CreateEventRequest{
		Title:           "Officer Meeting",
		StartAt:         time.Now().Add(time.Hour),
		RequiredRoleIDs: []string{"role-officer", " ", "role-officer"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"role-officer"}, event.RequiredRoleIDs)

	_, err = svc.Join(ctx, member("user-2", "role-recruit"), event.ID)
	require.ErrorIs(t, err, model.ErrMissingRole)

	joined, err := svc.Join(ctx, member("user-3", "role-officer"), event.ID)
	require.NoError(t, err)
	require.Len(t, joined.Attendees, 1)
}

func TestEventService_LeaveIsIdempotent(t *testing.T) {
	svc, _, publisher := newEventFixture()
	ctx := context.Background()

	event, err := svc.Create(ctx, organiser(), model.CreateEventRequest{Title: "Raid", StartAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	u := member("user-2")
	_, err = svc.Join(ctx, u, event.ID)
	require.NoError(t, err)

	left, err := svc.Leave(ctx, u, event.ID)
	require.NoError(t, err)
	require.Empty(t, left.Attendees)

	again, err := svc.Leave(ctx, u, event.ID)
	require.NoError(t, err)
	require.Empty(t, again.Attendees)

	require.Equal(t, []notify.Type{notify.TypeEventCreated, notify.TypeEventJoined, notify.TypeEventLeft}, publisher.Types())
}

func TestEventService_MissingEvent(t *testing.T) {
	svc, _, _ := newEventFixture()
	ctx := context.Background()

	_, err := svc.Join(ctx, member("user-2"), 404)
	require.ErrorIs(t, err, model.ErrEventNotFound)
	_, err = svc.Leave(ctx, member("user-2"), 404)
	require.ErrorIs(t, err, model.ErrEventNotFound)
	_, err = svc.ListAttendees(ctx, 404)
	require.ErrorIs(t, err, model.ErrEventNotFound)
	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestEventService_ListIncludesAttendees(t *testing.T) {
	svc, _, _ := newEventFixture()
	ctx := context.Background()

	later, err := svc.Create(ctx, organiser(), model.CreateEventRequest{Title: "Later", StartAt: time.Now().Add(3 * time.Hour)})
	require.NoError(t, err)
	sooner, err := svc.Create(ctx, organiser(), model.CreateEventRequest{Title: "Sooner", StartAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = svc.Join(ctx, member("user-2"), later.ID)
	require.NoError(t, err)

	events, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, sooner.ID, events[0].ID)
	require.Empty(t, events[0].Attendees)
	require.NotNil(t, events[0].Attendees)
	require.Len(t, events[1].Attendees, 1)
}

func TestAlertService_Window(t *testing.T) {
	store := newMemoryEventStore()
	start := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(context.Background(), &model.Event{Title: "Siege", StartAt: start}))

	svc := NewAlertService(store, 15*time.Minute)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"twenty minutes before", start.Add(-20 * time.Minute), 0},
		{"ten minutes before", start.Add(-10 * time.Minute), 1},
		{"exactly lead before", start.Add(-15 * time.Minute), 1},
		{"at start", start, 1},
		{"one minute after", start.Add(time.Minute), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alerts, err := svc.ListAt(context.Background(), tc.now)
			require.NoError(t, err)
			require.Len(t, alerts, tc.want)
			if tc.want == 1 {
				require.Equal(t, 15, alerts[0].LeadMinutes)
				require.Equal(t, "Siege", alerts[0].Title)
			}
		})
	}
}
