package service

import (
	"context"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/pkg/logger"
	"radiography_exam/pkg/monitoring"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ProgressService 维护 (用户, 试卷) 的实时进度，仅供看板使用
type ProgressService struct {
	Repo *repository.ProgressRepository
	Now  func() time.Time

	mu         sync.RWMutex
	staleAfter time.Duration
}

func NewProgressService(repo *repository.ProgressRepository, staleAfter time.Duration) *ProgressService {
	return &ProgressService{Repo: repo, Now: time.Now, staleAfter: staleAfter}
}

func (s *ProgressService) Touch(ctx context.Context, userID, testID uint, index, total int) error {
	return s.Repo.Upsert(ctx, &model.TestProgress{
		UserID:    userID,
		TestID:    testID,
		Index:     index,
		Total:     total,
		Status:    model.ProgressActive,
		UpdatedAt: s.Now(),
	})
}

func (s *ProgressService) Complete(ctx context.Context, userID, testID uint) error {
	return s.Repo.SetStatus(ctx, userID, testID, model.ProgressCompleted)
}

func (s *ProgressService) Exit(ctx context.Context, userID, testID uint) error {
	return s.Repo.SetStatus(ctx, userID, testID, model.ProgressExited)
}

func (s *ProgressService) SetStaleAfter(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.staleAfter = d
	s.mu.Unlock()
}

func (s *ProgressService) StaleAfter() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleAfter
}

// SweepStale 将长时间未更新的 active 进度标记为 exited
func (s *ProgressService) SweepStale(ctx context.Context) (int64, error) {
	n, err := s.Repo.MarkStale(ctx, s.Now().Add(-s.StaleAfter()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.StaleProgressSwept.Add(float64(n))
		logger.Log.Info("Marked stale test progress as exited", zap.Int64("rows", n))
	}
	return n, nil
}

func (s *ProgressService) LiveProgress(ctx context.Context, window time.Duration) ([]model.TestProgress, error) {
	return s.Repo.ListActiveSince(ctx, s.Now().Add(-window))
}

// StartSweeper 按 cron 表达式定期清理，上一轮未结束时跳过
func (s *ProgressService) StartSweeper(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.SweepStale(ctx); err != nil {
			logger.Log.Error("Stale progress sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
