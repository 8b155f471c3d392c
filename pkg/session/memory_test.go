package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func newState(id string) *models.ConversationState {
	return &models.ConversationState{
		ConversationID: id,
		Answer:         "hello",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "c1", newState("c1")))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Equal(t, "hello", got.Answer)

	require.NoError(t, s.Delete(ctx, "c1"))
	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteMissingIsNoError(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	assert.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "c1", newState("c1")))

	first, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	first.Answer = "mutated"

	second, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello", second.Answer)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "c1", newState("c1")))
	time.Sleep(25 * time.Millisecond)

	// The sweeper cadence is coarse; Get itself must honor expiry.
	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LockNoStateThenGetNotFound(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	unlock, err := s.Lock(ctx, "fresh")
	require.NoError(t, err)
	defer unlock()

	// Locking alone must not materialize a conversation.
	_, err = s.Get(ctx, "fresh")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LockSerializesSameConversation(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int

	unlock, err := s.Lock(ctx, "c1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		innerUnlock, err := s.Lock(ctx, "c1")
		assert.NoError(t, err)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		innerUnlock()
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock()
	<-done

	assert.Equal(t, []int{1, 2}, order)
}

func TestMemoryStore_LockHeldAcrossDelete(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "c1", newState("c1")))
	unlock, err := s.Lock(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "c1"))

	// Deleting the state must not mint a fresh mutex for the key.
	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		innerUnlock, err := s.Lock(ctx, "c1")
		assert.NoError(t, err)
		innerUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(25 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestMemoryStore_LocksIndependentAcrossConversations(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	unlockA, err := s.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := s.Lock(ctx, "b")
		assert.NoError(t, err)
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different conversation should not block")
	}
}
