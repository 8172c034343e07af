package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guild-overlay/internal/model"
)

func TestStateSigner(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)}
	signer, err := NewStateSigner(testSecret, 10*time.Minute, clock.Now)
	require.NoError(t, err)

	state, err := signer.Issue()
	require.NoError(t, err)
	require.NoError(t, signer.Verify(state))

	other, err := signer.Issue()
	require.NoError(t, err)
	require.NotEqual(t, state, other)

	t.Run("foreign key", func(t *testing.T) {
		foreign, err := NewStateSigner("different-secret", 10*time.Minute, clock.Now)
		require.NoError(t, err)
		require.ErrorIs(t, foreign.Verify(state), model.ErrInvalidOAuthState)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, bad := range []string{"", "no-dot", "!!!.???", state + "x", strings.Replace(state, ".", ".A", 1)} {
			require.ErrorIs(t, signer.Verify(bad), model.ErrInvalidOAuthState, bad)
		}
	})

	t.Run("expired", func(t *testing.T) {
		clock.Set(clock.Now().Add(10 * time.Minute))
		require.ErrorIs(t, signer.Verify(state), model.ErrInvalidOAuthState)
	})
}
