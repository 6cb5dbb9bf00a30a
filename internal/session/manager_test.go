// ABOUTME: Tests for conversation lifecycle: creation, recreation, staleness.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-assistant/internal/store"
)

func TestGetOrCreate_CreatesThreadAndRowTogether(t *testing.T) {
	f := newFixture(t)

	conv, err := f.manager.GetOrCreate(context.Background(), 42, "asst_test", UserMeta{
		Username:     "testuser",
		LanguageCode: "ru",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "thread_a", conv.ThreadID)
	assert.Equal(t, "ru", conv.LanguageCode)
	assert.Equal(t, "1.00", conv.Balance.StringFixed(2))
	require.Len(t, f.client.createdThreads, 1)

	// Persisted: a fresh read returns the same row.
	again, err := f.store.GetConversation(context.Background(), 42, "asst_test")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, conv.ThreadID, again.ThreadID)
}

func TestGetOrCreate_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)
	second, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.client.createdThreads, 1, "existing rows never spawn threads")
}

// racedStore inserts a competing row before reporting every create as
// a duplicate, standing in for a concurrent writer winning the race.
type racedStore struct {
	store.Store
}

func (s *racedStore) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	winner := *conv
	winner.ID = "conv-winner"
	winner.ThreadID = "thread_z"
	if err := s.Store.CreateConversation(ctx, &winner); err != nil {
		return err
	}
	return store.ErrDuplicateConversation
}

func TestGetOrCreate_RaceLoserDeletesItsThread(t *testing.T) {
	st := testStore(t)
	client := &sessionClient{}
	m := NewManager(&racedStore{Store: st}, client, DefaultManagerConfig(), nil)

	conv, err := m.GetOrCreate(context.Background(), 42, "asst_test", UserMeta{})

	require.NoError(t, err)
	assert.Equal(t, "conv-winner", conv.ID, "the winner's row is used")
	assert.Equal(t, "thread_z", conv.ThreadID)
	assert.Equal(t, []string{"thread_a"}, client.deletedThreads,
		"the loser's thread is released on the remote service")
}

func TestGetOrCreate_SeparateAssistantsSeparateRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.GetOrCreate(ctx, 42, "asst_one", UserMeta{})
	require.NoError(t, err)
	b, err := f.manager.GetOrCreate(ctx, 42, "asst_two", UserMeta{})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.ThreadID, b.ThreadID)
}

func TestRecreateThread_DeletesOldAndPersistsNew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)
	old := conv.ThreadID

	require.NoError(t, f.manager.RecreateThread(ctx, conv))

	assert.NotEqual(t, old, conv.ThreadID)
	assert.Equal(t, []string{old}, f.client.deletedThreads)

	reloaded, err := f.store.GetConversation(ctx, 42, "asst_test")
	require.NoError(t, err)
	assert.Equal(t, conv.ThreadID, reloaded.ThreadID)
}

func TestReplaceThread_NeverDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)

	require.NoError(t, f.manager.ReplaceThread(ctx, conv))

	assert.Empty(t, f.client.deletedThreads, "a lost thread has nothing to delete")
	assert.Equal(t, "thread_b", conv.ThreadID)
}

func TestEnsureFresh_RecreatesStaleThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)
	old := conv.ThreadID
	conv.UpdatedAt = time.Now().Add(-2 * time.Hour)

	require.NoError(t, f.manager.EnsureFresh(ctx, conv))

	assert.NotEqual(t, old, conv.ThreadID)
	assert.Equal(t, []string{old}, f.client.deletedThreads)
}

func TestEnsureFresh_KeepsRecentThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.manager.GetOrCreate(ctx, 42, "asst_test", UserMeta{})
	require.NoError(t, err)
	old := conv.ThreadID
	conv.UpdatedAt = time.Now()

	require.NoError(t, f.manager.EnsureFresh(ctx, conv))

	assert.Equal(t, old, conv.ThreadID)
	assert.Len(t, f.client.createdThreads, 1)
}

func TestLock_SerializesSameConversation(t *testing.T) {
	f := newFixture(t)

	unlock := f.manager.Lock(42, "asst_test")
	acquired := make(chan struct{})
	go func() {
		inner := f.manager.Lock(42, "asst_test")
		close(acquired)
		inner()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while the first held it")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock after release")
	}
}

func TestLock_IndependentConversationsDoNotBlock(t *testing.T) {
	f := newFixture(t)

	unlock := f.manager.Lock(42, "asst_test")
	defer unlock()

	done := make(chan struct{})
	go func() {
		other := f.manager.Lock(43, "asst_test")
		other()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different user pair blocked on an unrelated lock")
	}
}
