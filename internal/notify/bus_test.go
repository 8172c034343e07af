package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBus_FanOut(t *testing.T) {
	bus := NewBus()
	first, unsubscribeFirst := bus.Subscribe()
	second, unsubscribeSecond := bus.Subscribe()
	defer unsubscribeSecond()

	n := New(TypeCraftingClaimed, "user-1", map[string]int64{"request_id": 7})
	bus.Publish(n)

	require.Equal(t, n, <-first)
	require.Equal(t, n, <-second)
	require.NotEmpty(t, n.ID)
	require.NotEmpty(t, n.Timestamp)

	unsubscribeFirst()
	_, open := <-first
	require.False(t, open)

	// Unsubscribing twice is harmless.
	unsubscribeFirst()

	bus.Publish(New(TypeEventJoined, "user-2", nil))
	require.Equal(t, TypeEventJoined, (<-second).Type)
}

func TestInMemoryBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(New(TypeEventCreated, "user-1", i))
	}

	require.Len(t, ch, subscriberBuffer)
}
