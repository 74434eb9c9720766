package memory

import (
	"context"
	"testing"

	"github.com/adwski/pairchat/backend/model"
	"github.com/adwski/pairchat/backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Identities(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.FindIdentity(ctx, "fp1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.CreateIdentity(ctx, &model.Identity{
		Fingerprint: "fp1",
		DisplayName: "Odd Lynx",
		Role:        model.RoleTalker,
		Online:      true,
	}))

	ident, err := s.FindIdentity(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "Odd Lynx", ident.DisplayName)
	assert.True(t, ident.Online)

	require.NoError(t, s.SetOnline(ctx, "fp1", false))
	require.NoError(t, s.SetBanned(ctx, "fp1", true))

	ident, err = s.FindIdentity(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, ident.Online)
	assert.True(t, ident.Banned)

	t.Run("unknown fingerprint", func(t *testing.T) {
		assert.ErrorIs(t, s.SetOnline(ctx, "nope", true), storage.ErrNotFound)
		assert.ErrorIs(t, s.SetBanned(ctx, "nope", true), storage.ErrNotFound)
	})
}

func TestStore_Sessions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateIdentity(ctx, &model.Identity{Fingerprint: "fpA"}))
	require.NoError(t, s.CreateIdentity(ctx, &model.Identity{Fingerprint: "fpB"}))

	sessionID, err := s.CreateSession(ctx, "fpA", "fpB")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	t.Run("links both identities", func(t *testing.T) {
		for _, fp := range []string{"fpA", "fpB"} {
			ident, err := s.FindIdentity(ctx, fp)
			require.NoError(t, err)
			assert.Equal(t, sessionID, ident.SessionID)
		}
	})

	require.NoError(t, s.AppendMessage(ctx, sessionID, "fpA", "hello"))
	require.NoError(t, s.AppendMessage(ctx, sessionID, "fpB", "hi back"))
	require.Len(t, s.Messages(sessionID), 2)

	t.Run("close purges messages and linkage", func(t *testing.T) {
		require.NoError(t, s.CloseSession(ctx, sessionID))
		assert.Empty(t, s.Messages(sessionID))
		for _, fp := range []string{"fpA", "fpB"} {
			ident, err := s.FindIdentity(ctx, fp)
			require.NoError(t, err)
			assert.Empty(t, ident.SessionID)
		}
	})

	t.Run("close is a no-op for unknown session", func(t *testing.T) {
		assert.NoError(t, s.CloseSession(ctx, "no-such-session"))
	})

	t.Run("append to unknown session fails", func(t *testing.T) {
		assert.ErrorIs(t, s.AppendMessage(ctx, "no-such-session", "fpA", "hello"), storage.ErrNotFound)
	})
}
