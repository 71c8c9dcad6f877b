package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/platform/audit/store/memory"
)

const wallet = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Identity: wallet,
		Action:   string(audit.EventConsentSigned),
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventConsentSigned), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", events[0].ID.String())
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			Identity: wallet,
			Action:   string(audit.EventConsentVerified),
		})
		require.NoError(t, err)
	}

	require.NoError(t, pub.Close())

	events, err := store.ListByIdentity(context.Background(), wallet)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Identity: wallet, Action: string(audit.EventConsentSigned)})
			if err != nil {
				assert.ErrorIs(t, err, ErrBufferFull)
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Identity: wallet, Action: string(audit.EventConsentNotFound)}))

	events, err := pub.List(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Identity:  wallet,
		Action:    string(audit.EventConsentSigned),
		Timestamp: customTime,
	}))

	events, err := pub.List(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore())
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close(), "close is idempotent")

	err := pub.Emit(context.Background(), audit.Event{Identity: wallet, Action: string(audit.EventConsentSigned)})
	assert.Error(t, err)
}

type appendOnly struct{ err error }

func (a appendOnly) Append(context.Context, audit.Event) error { return a.err }

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(appendOnly{})
	defer pub.Close()

	_, err := pub.List(context.Background(), wallet)
	assert.ErrorIs(t, err, ErrNotListable)
}

func TestPublisher_SyncPropagatesStoreError(t *testing.T) {
	boom := errors.New("disk full")
	pub := NewPublisher(appendOnly{err: boom})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Identity: wallet, Action: string(audit.EventConsentSigned)})
	assert.ErrorIs(t, err, boom)
}

func TestPublisher_KeepsIdentitiesApart(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	other := "11111111111111111111111111111111"
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Identity: wallet, Action: string(audit.EventConsentSigned)}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Identity: other, Action: string(audit.EventConsentNotFound)}))

	mine, err := pub.List(context.Background(), wallet)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, string(audit.EventConsentSigned), mine[0].Action)

	recent, err := store.ListRecent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, other, recent[0].Identity)
}

func TestPublisher_SamplerThinsOperationsOnly(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithSampler(NewSampler(0)))
	defer pub.Close()

	ctx := context.Background()
	require.NoError(t, pub.Emit(ctx, audit.Event{Identity: wallet, Action: string(audit.EventConsentVerified)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Identity: wallet, Action: string(audit.EventConsentSigned)}))
	require.NoError(t, pub.Emit(ctx, audit.Event{Identity: wallet, Action: string(audit.EventConsentSignFailed)}))

	events, err := store.ListByIdentity(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, audit.CategoryCompliance, e.Category)
	}
}

func TestSampler(t *testing.T) {
	verified := audit.Event{Action: string(audit.EventConsentVerified), Category: audit.CategoryOperations}
	notFound := audit.Event{Action: string(audit.EventConsentNotFound), Category: audit.CategoryOperations}

	t.Run("rates are clamped", func(t *testing.T) {
		assert.True(t, NewSampler(7).Keep(verified))
		assert.False(t, NewSampler(-1).Keep(verified))
	})

	t.Run("per action override", func(t *testing.T) {
		s := NewSampler(1)
		s.SetRate(audit.EventConsentNotFound, 0)
		assert.True(t, s.Keep(verified))
		assert.False(t, s.Keep(notFound))
	})

	t.Run("fractional rate uses the roll", func(t *testing.T) {
		s := NewSampler(0.25)
		s.roll = func() float64 { return 0.2 }
		assert.True(t, s.Keep(verified))
		s.roll = func() float64 { return 0.3 }
		assert.False(t, s.Keep(verified))
	})

	t.Run("compliance always kept", func(t *testing.T) {
		s := NewSampler(0)
		assert.True(t, s.Keep(audit.Event{Action: string(audit.EventConsentSigned), Category: audit.CategoryCompliance}))
	})
}
