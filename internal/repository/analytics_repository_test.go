package repository

import (
	"context"
	"testing"

	"radiography_exam/internal/model"
	"radiography_exam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedResult(t *testing.T, db *gorm.DB, testID uint, user *model.User, score int) *model.Result {
	t.Helper()
	r := &model.Result{TestID: testID, Score: score, TotalQuestions: 4, CorrectAnswers: score * 4 / 100}
	if user != nil {
		id := user.ID
		r.UserID = &id
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func TestLatestPerUserReturnsMostRecentAttempt(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()
	test, _ := testutil.SeedTest(t, db, "Chest", "A")
	other, _ := testutil.SeedTest(t, db, "Spine", "A")
	ana := seedUser(t, db, "ana", model.Student)
	ben := seedUser(t, db, "ben", model.Student)

	seedResult(t, db, test.ID, ana, 100)
	anaLatest := seedResult(t, db, test.ID, ana, 50)
	benLatest := seedResult(t, db, test.ID, ben, 75)
	seedResult(t, db, test.ID, nil, 25)
	seedResult(t, db, other.ID, ben, 0)

	latest, err := repo.LatestPerUser(ctx, test.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	assert.Equal(t, benLatest.ID, latest[0].ID)
	assert.Equal(t, anaLatest.ID, latest[1].ID)
	require.NotNil(t, latest[1].User)
	assert.Equal(t, "ana", latest[1].User.Name)
}

func TestAggregates(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()
	chest, _ := testutil.SeedTest(t, db, "Chest", "A")
	spine, _ := testutil.SeedTest(t, db, "Spine", "A")
	ana := seedUser(t, db, "ana", model.Student)
	ben := seedUser(t, db, "ben", model.Student)

	seedResult(t, db, chest.ID, ana, 100)
	seedResult(t, db, chest.ID, ana, 50)
	last := seedResult(t, db, spine.ID, ben, 25)
	seedResult(t, db, spine.ID, nil, 75)

	byUser, err := repo.ByUser(ctx)
	require.NoError(t, err)
	require.Len(t, byUser, 2)
	users := map[uint]ResultAggregate{}
	for _, a := range byUser {
		users[a.Key] = a
	}
	assert.Equal(t, int64(2), users[ana.ID].Attempts)
	assert.InDelta(t, 75.0, users[ana.ID].AverageScore, 0.001)
	assert.Equal(t, 100, users[ana.ID].BestScore)
	assert.Equal(t, last.ID, users[ben.ID].LastResultID)

	byTest, err := repo.ByTest(ctx)
	require.NoError(t, err)
	tests := map[uint]ResultAggregate{}
	for _, a := range byTest {
		tests[a.Key] = a
	}
	assert.Equal(t, int64(2), tests[spine.ID].Attempts)
	assert.InDelta(t, 50.0, tests[spine.ID].AverageScore, 0.001)

	forChest, err := repo.ByUserForTest(ctx, chest.ID)
	require.NoError(t, err)
	require.Len(t, forChest, 1)
	assert.Equal(t, ana.ID, forChest[0].Key)

	avg, err := repo.AverageScore(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 62.5, avg, 0.001)

	results, err := repo.ResultsByIDs(ctx, []uint{last.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Test)
	assert.Equal(t, "Spine", results[0].Test.Title)
}

func TestAverageScoreWithoutResults(t *testing.T) {
	db := testutil.NewDB(t)
	avg, err := NewAnalyticsRepository(db).AverageScore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, avg)
}
