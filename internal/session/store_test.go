package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, 30*time.Minute), mr
}

func TestGetMissingSessionReturnsEmptyState(t *testing.T) {
	store, _ := newStore(t)
	st, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, st.Answers)
	assert.False(t, st.HasAttempt())
}

func TestUpdatePersistsAndRefreshesTTL(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(st *State) error {
		st.SetAnswer(7, "B", 12)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, mr.TTL("session:s1"))

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	letter, ok := st.Answer(7)
	assert.True(t, ok)
	assert.Equal(t, "B", letter)
	assert.Equal(t, 12, st.TimeSpent(7))
}

func TestUpdateErrorLeavesStateUntouched(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.Update(ctx, "s1", func(st *State) error {
		st.SetAnswer(1, "A", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, st.Answers)
}

func TestSessionsAreIsolated(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "alice", func(st *State) error { st.SetAnswer(1, "A", 3); return nil })
	require.NoError(t, err)
	_, err = store.Update(ctx, "bob", func(st *State) error { st.SetAnswer(1, "C", 9); return nil })
	require.NoError(t, err)

	a, _ := store.Get(ctx, "alice")
	b, _ := store.Get(ctx, "bob")
	la, _ := a.Answer(1)
	lb, _ := b.Answer(1)
	assert.Equal(t, "A", la)
	assert.Equal(t, "C", lb)
	assert.Equal(t, 3, a.TimeSpent(1))
	assert.Equal(t, 9, b.TimeSpent(1))
}

func TestConcurrentUpdatesToOneSessionAreSerialized(t *testing.T) {
	store, _ := newStore(t)
	store.MaxRetries = 1000
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(qid uint) {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(st *State) error {
				st.SetAnswer(qid, "D", int(qid))
				return nil
			})
			assert.NoError(t, err)
		}(uint(i))
	}
	wg.Wait()

	st, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, st.Answers, 20)
}

func TestClearAttemptKeepsIdentityAndHistory(t *testing.T) {
	st := &State{UserID: 4, UserName: "Ana"}
	st.BeginAttempt(2, time.UnixMilli(1_000))
	st.SetAnswer(1, "A", 5)
	st.SetMarked(1, true)
	st.RememberResult(2, 99)

	st.ClearAttempt()

	assert.Empty(t, st.Answers)
	assert.Empty(t, st.QuestionTimes)
	assert.Empty(t, st.Marked)
	assert.Zero(t, st.TestStartTime)
	assert.Empty(t, st.AttemptID)
	assert.Equal(t, uint(4), st.UserID)
	id, ok := st.LastResult(2)
	assert.True(t, ok)
	assert.Equal(t, uint(99), id)
}

func TestSetAnswerClampsNegativeSeconds(t *testing.T) {
	st := &State{}
	st.SetAnswer(3, "B", -20)
	assert.Equal(t, 0, st.TimeSpent(3))
}

func TestElapsedSince(t *testing.T) {
	st := &State{}
	now := time.UnixMilli(50_000)
	assert.Equal(t, 0, st.ElapsedSince(now))
	st.QuestionStartTime = 20_500
	assert.Equal(t, 29, st.ElapsedSince(now))
	st.QuestionStartTime = 60_000
	assert.Equal(t, 0, st.ElapsedSince(now))
}
