package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxd/inboxd/internal/domain"
)

func TestMemoryStore_AppendAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	first, err := s.Append(ctx, "alice", "bob", "alice", "hello", now)
	require.NoError(t, err)
	second, err := s.Append(ctx, "alice", "bob", "bob", "hi back", now.Add(time.Second))
	require.NoError(t, err)

	msgs, err := s.List(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "bob", msgs[0].RecipientID)
	// Mirror-style append: when the sender is not the log owner, the owner
	// is the recipient.
	assert.Equal(t, "alice", msgs[1].RecipientID)
}

func TestMemoryStore_AppendBumpsEqualTimestamps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Now()

	var prev time.Time
	for i := 0; i < 10; i++ {
		msg, err := s.Append(ctx, "alice", "bob", "alice", fmt.Sprintf("msg %d", i), at)
		require.NoError(t, err)
		assert.True(t, msg.CreatedAt.After(prev), "timestamps must be strictly increasing")
		prev = msg.CreatedAt
	}
}

func TestMemoryStore_AppendRejectsClockRegression(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, err := s.Append(ctx, "alice", "bob", "alice", "later", now)
	require.NoError(t, err)

	// An earlier wall clock still lands after the previous entry.
	msg, err := s.Append(ctx, "alice", "bob", "alice", "earlier", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, msg.CreatedAt.After(now.UTC().Add(-time.Minute)))

	msgs, err := s.List(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))
}

func TestMemoryStore_ListAfterCursor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	var cursor time.Time
	for i := 0; i < 5; i++ {
		msg, err := s.Append(ctx, "alice", "bob", "alice", fmt.Sprintf("msg %d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		if i == 2 {
			cursor = msg.CreatedAt
		}
	}

	msgs, err := s.List(ctx, "alice", "bob", cursor)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg 3", msgs[0].Body)
	assert.Equal(t, "msg 4", msgs[1].Body)
}

func TestMemoryStore_LogsAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, err := s.Append(ctx, "alice", "bob", "alice", "for bob", now)
	require.NoError(t, err)

	msgs, err := s.List(ctx, "bob", "alice", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, msgs, "the mirror log is written by the caller, not the store")

	msgs, err = s.List(ctx, "alice", "carol", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "alice", "bob", "alice", "original", time.Now())
	require.NoError(t, err)

	msgs, err := s.List(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	msgs[0].Body = "mutated"

	again, err := s.List(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Body)
}

func TestMemoryStore_DeleteLog(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, err := s.Append(ctx, "alice", "bob", "alice", "one", now)
	require.NoError(t, err)
	_, err = s.Append(ctx, "alice", "bob", "bob", "two", now.Add(time.Second))
	require.NoError(t, err)
	_, err = s.Append(ctx, "bob", "alice", "alice", "mirror", now)
	require.NoError(t, err)

	removed, err := s.DeleteLog(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	msgs, err := s.List(ctx, "alice", "bob", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// The counterpart's mirror log is untouched.
	msgs, err = s.List(ctx, "bob", "alice", time.Time{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryStore_DeleteLogIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	removed, err := s.DeleteLog(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = s.Append(ctx, "alice", "bob", "alice", "hello", time.Now())
	require.NoError(t, err)
	_, err = s.DeleteLog(ctx, "alice", "bob")
	require.NoError(t, err)

	removed, err = s.DeleteLog(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestMemoryStore_Validation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Append(ctx, "", "bob", "alice", "hello", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Append(ctx, "alice", "", "alice", "hello", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Append(ctx, "alice", "alice", "alice", "hello", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Append(ctx, "alice", "bob", "alice", "", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.List(ctx, "", "bob", time.Time{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.DeleteLog(ctx, "alice", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const perLog = 50
	var wg sync.WaitGroup
	for _, owner := range []string{"alice", "bob", "carol"} {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			for i := 0; i < perLog; i++ {
				_, err := s.Append(ctx, owner, "dave", owner, fmt.Sprintf("msg %d", i), time.Now())
				assert.NoError(t, err)
			}
		}(owner)
	}
	wg.Wait()

	for _, owner := range []string{"alice", "bob", "carol"} {
		msgs, err := s.List(ctx, owner, "dave", time.Time{})
		require.NoError(t, err)
		require.Len(t, msgs, perLog)
		for i := 1; i < len(msgs); i++ {
			assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
		}
	}
}
