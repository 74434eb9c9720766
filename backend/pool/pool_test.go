package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/adwski/pairchat/backend/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool() *Pool {
	logger := zerolog.Nop()
	return New(&logger)
}

func entry(connID, fingerprint string) model.WaitingEntry {
	return model.WaitingEntry{
		ConnID:     connID,
		Identity:   &model.Identity{Fingerprint: fingerprint},
		EnqueuedAt: time.Now(),
	}
}

func noExpire(string) {}

func TestPool_Enqueue(t *testing.T) {
	p := newTestPool()

	require.NoError(t, p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire))
	assert.Equal(t, 1, p.Len())

	t.Run("duplicate connection fails", func(t *testing.T) {
		err := p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire)
		assert.ErrorIs(t, err, ErrAlreadyWaiting)
		assert.Equal(t, 1, p.Len())
	})
}

func TestPool_FindMatch(t *testing.T) {
	t.Run("no self pairing", func(t *testing.T) {
		p := newTestPool()
		require.NoError(t, p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire))

		_, found := p.FindMatch("fp1")
		assert.False(t, found)
	})

	t.Run("no self pairing across reconnects", func(t *testing.T) {
		p := newTestPool()
		// same fingerprint parked under two connection ids
		require.NoError(t, p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire))
		require.NoError(t, p.Enqueue(entry("c2", "fp1"), time.Minute, noExpire))

		_, found := p.FindMatch("fp1")
		assert.False(t, found)
	})

	t.Run("returns eligible entry", func(t *testing.T) {
		p := newTestPool()
		require.NoError(t, p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire))
		require.NoError(t, p.Enqueue(entry("c2", "fp2"), time.Minute, noExpire))

		match, found := p.FindMatch("fp2")
		require.True(t, found)
		assert.Equal(t, "fp1", match.Identity.Fingerprint)
		assert.Equal(t, "c1", match.ConnID)
	})

	t.Run("empty pool", func(t *testing.T) {
		p := newTestPool()
		_, found := p.FindMatch("fp1")
		assert.False(t, found)
	})
}

func TestPool_Remove(t *testing.T) {
	p := newTestPool()
	require.NoError(t, p.Enqueue(entry("c1", "fp1"), time.Minute, noExpire))

	assert.True(t, p.Remove("c1"))
	assert.Equal(t, 0, p.Len())

	t.Run("idempotent", func(t *testing.T) {
		assert.False(t, p.Remove("c1"))
		assert.False(t, p.Remove("never-seen"))
	})
}

func TestPool_Expiry(t *testing.T) {
	t.Run("fires for stale entry", func(t *testing.T) {
		p := newTestPool()
		expired := make(chan string, 1)
		require.NoError(t, p.Enqueue(entry("c1", "fp1"), 20*time.Millisecond, func(connID string) {
			expired <- connID
		}))

		select {
		case connID := <-expired:
			assert.Equal(t, "c1", connID)
		case <-time.After(time.Second):
			t.Fatal("expiry did not fire")
		}
	})

	t.Run("stopped by removal", func(t *testing.T) {
		p := newTestPool()
		var fired atomic.Bool
		require.NoError(t, p.Enqueue(entry("c1", "fp1"), 20*time.Millisecond, func(string) {
			fired.Store(true)
		}))
		require.True(t, p.Remove("c1"))

		time.Sleep(50 * time.Millisecond)
		assert.False(t, fired.Load())
	})
}
