package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmatrace/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	rec := Record{Status: 200, Body: json.RawMessage(`{"signature":"abc"}`)}

	t.Run("first reserve wins and second sees in flight", func(t *testing.T) {
		s := NewInMemoryStore()
		token, existing, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Nil(t, existing)

		_, _, err = s.Reserve(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrInFlight)
	})

	t.Run("completed key replays the stored record", func(t *testing.T) {
		s := NewInMemoryStore()
		token, _, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.Complete(ctx, "k", token, rec, time.Hour))

		token2, existing, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Empty(t, token2)
		require.NotNil(t, existing)
		assert.Equal(t, rec, *existing)
	})

	t.Run("released key can be reserved again", func(t *testing.T) {
		s := NewInMemoryStore()
		token, _, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.NoError(t, s.Release(ctx, "k", token))

		_, existing, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, existing)
	})

	t.Run("stale token cannot complete or release", func(t *testing.T) {
		s := NewInMemoryStore()
		token, _, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)

		assert.ErrorIs(t, s.Complete(ctx, "k", "other", rec, time.Hour), sentinel.ErrConflict)
		require.NoError(t, s.Release(ctx, "k", "other"))
		_, _, err = s.Reserve(ctx, "k", time.Minute)
		assert.ErrorIs(t, err, sentinel.ErrInFlight)

		require.NoError(t, s.Complete(ctx, "k", token, rec, time.Hour))
	})

	t.Run("reservation expires", func(t *testing.T) {
		s := NewInMemoryStore()
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		s.now = func() time.Time { return now }
		_, _, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		token, existing, err := s.Reserve(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Nil(t, existing)
	})

	t.Run("concurrent reserves have one winner", func(t *testing.T) {
		s := NewInMemoryStore()
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := s.Reserve(ctx, "k", time.Minute); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
