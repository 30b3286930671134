package repository

import (
	"context"
	"sync"
	"testing"

	"radiography_exam/internal/model"
	"radiography_exam/internal/testutil"
	"radiography_exam/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementVoteRepairsMismatchedCounts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	_, qs := testutil.SeedTest(t, db, "Chest", "A")
	require.NoError(t, db.Model(&model.Question{}).Where("id = ?", qs[0].ID).
		Update("choice_vote_counts", `[7]`).Error)

	require.NoError(t, repo.IncrementVote(ctx, qs[0].ID, 1))

	q, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 0}, []int(q.ChoiceVoteCounts))
	assert.Equal(t, 1, q.VoteVersion)
}

func TestIncrementVoteOutOfRange(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	_, qs := testutil.SeedTest(t, db, "Chest", "A")

	err := repo.IncrementVote(context.Background(), qs[0].ID, 4)
	assert.ErrorIs(t, err, util.ErrChoiceOutOfRange)
}

func TestIncrementVoteConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()
	_, qs := testutil.SeedTest(t, db, "Chest", "A")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementVote(ctx, qs[0].ID, 2))
		}()
	}
	wg.Wait()

	q, err := repo.FindByID(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 5, 0}, []int(q.ChoiceVoteCounts))
}

func TestResetVotes(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()
	_, qs := testutil.SeedTest(t, db, "Chest", "A", "B")

	require.NoError(t, repo.IncrementVote(ctx, qs[0].ID, 0))
	require.NoError(t, repo.IncrementVote(ctx, qs[1].ID, 3))
	require.NoError(t, repo.ResetVotes(ctx))

	for _, want := range qs {
		q, err := repo.FindByID(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 0, 0, 0}, q.VoteCounts())
	}
}

func TestListByTestKeepsCreationOrder(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()
	test, qs := testutil.SeedTest(t, db, "Chest", "A", "B", "C")

	got, err := repo.ListByTest(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range qs {
		assert.Equal(t, qs[i].ID, got[i].ID)
	}

	n, err := repo.CountByTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCreateBatch(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()
	test, _ := testutil.SeedTest(t, db, "Spine")

	batch := []model.Question{
		{TestID: test.ID, Title: "Q1", Choices: []string{"a", "b"}, CorrectAnswer: "A"},
		{TestID: test.ID, Title: "Q2", Choices: []string{"a", "b"}, CorrectAnswer: "B"},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	n, err := repo.CountByTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
