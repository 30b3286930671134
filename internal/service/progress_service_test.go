package service

import (
	"context"
	"testing"
	"time"

	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepStaleMarksIdleAttemptsExited(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewProgressService(repository.NewProgressRepository(db), 30*time.Minute)
	ctx := context.Background()
	test, _ := testutil.SeedTest(t, db, "Chest", "A", "B")

	idle := &model.User{Name: "idle", Email: "idle@example.com", IsActive: true}
	busy := &model.User{Name: "busy", Email: "busy@example.com", IsActive: true}
	require.NoError(t, db.Create(idle).Error)
	require.NoError(t, db.Create(busy).Error)

	now := time.Now()
	svc.Now = func() time.Time { return now.Add(-time.Hour) }
	require.NoError(t, svc.Touch(ctx, idle.ID, test.ID, 0, 2))
	svc.Now = func() time.Time { return now }
	require.NoError(t, svc.Touch(ctx, busy.ID, test.ID, 1, 2))

	n, err := svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	p, err := svc.Repo.Find(ctx, idle.ID, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProgressExited, p.Status)

	live, err := svc.LiveProgress(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, busy.ID, live[0].UserID)
	assert.Equal(t, 50, live[0].Percent())
}

func TestSetStaleAfterIgnoresNonPositive(t *testing.T) {
	svc := NewProgressService(nil, 30*time.Minute)
	svc.SetStaleAfter(0)
	assert.Equal(t, 30*time.Minute, svc.StaleAfter())
	svc.SetStaleAfter(time.Hour)
	assert.Equal(t, time.Hour, svc.StaleAfter())
}

func TestStartSweeperRejectsBadSchedule(t *testing.T) {
	svc := NewProgressService(nil, time.Minute)
	_, err := svc.StartSweeper("not a schedule")
	assert.Error(t, err)

	c, err := svc.StartSweeper("@every 1h")
	require.NoError(t, err)
	<-c.Stop().Done()
}
