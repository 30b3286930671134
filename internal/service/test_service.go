package service

import (
	"context"
	"errors"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/util"
	"radiography_exam/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TestRequest struct {
	Title        string `json:"title" binding:"required,max=255"`
	Description  string `json:"description"`
	Category     string `json:"category" binding:"omitempty,max=100"`
	TimeLimit    int    `json:"timeLimit" binding:"omitempty,min=1,max=1440"`
	IsActive     *bool  `json:"isActive"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	MaxUsers     int    `json:"maxUsers" binding:"omitempty,min=0"`
	IsOpenAccess *bool  `json:"isOpenAccess"`
}

type AccessRequest struct {
	Mode     string `json:"mode" form:"mode" binding:"required,oneof=infinite limited"`
	MaxUsers int    `json:"maxUsers" form:"maxUsers"`
}

type TestSummary struct {
	model.Test
	QuestionCount int64 `json:"questionCount"`
	SlotsUsed     int64 `json:"slotsUsed,omitempty"`
}

// TestService 试卷管理
type TestService struct {
	Tests     *repository.TestRepository
	Questions *repository.QuestionRepository
	Access    *AccessService
}

func NewTestService(tests *repository.TestRepository, questions *repository.QuestionRepository, access *AccessService) *TestService {
	return &TestService{Tests: tests, Questions: questions, Access: access}
}

func (s *TestService) Get(ctx context.Context, id uint) (*model.Test, error) {
	test, err := s.Tests.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	return test, err
}

func (s *TestService) List(ctx context.Context, activeOnly bool) ([]TestSummary, error) {
	tests, err := s.Tests.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]TestSummary, 0, len(tests))
	for _, t := range tests {
		n, err := s.Questions.CountByTest(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		summary := TestSummary{Test: t, QuestionCount: n}
		if t.LimitsAttempts() && s.Access != nil {
			if used, err := s.Access.Used(ctx, t.ID); err == nil {
				summary.SlotsUsed = used
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

func applyTestRequest(test *model.Test, req TestRequest) error {
	start, err := util.ParseDate(req.StartDate)
	if err != nil {
		return err
	}
	end, err := util.ParseDate(req.EndDate)
	if err != nil {
		return err
	}
	test.Title = strings.TrimSpace(req.Title)
	test.Description = req.Description
	if req.Category != "" {
		test.Category = req.Category
	}
	if req.TimeLimit > 0 {
		test.TimeLimit = req.TimeLimit
	}
	test.StartDate = start
	test.EndDate = end
	test.MaxUsers = req.MaxUsers
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if req.IsOpenAccess != nil {
		test.IsOpenAccess = *req.IsOpenAccess
	}
	return nil
}

func (s *TestService) ensureTitleFree(ctx context.Context, title string, selfID uint) error {
	existing, err := s.Tests.FindByTitle(ctx, strings.TrimSpace(title))
	if err == nil && existing.ID != selfID {
		return util.ErrTestTitleTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *TestService) Create(ctx context.Context, req TestRequest) (*model.Test, error) {
	if err := s.ensureTitleFree(ctx, req.Title, 0); err != nil {
		return nil, err
	}
	test := &model.Test{IsActive: true, IsOpenAccess: true, Category: "General", TimeLimit: 60}
	if err := applyTestRequest(test, req); err != nil {
		return nil, err
	}
	if err := s.Tests.Create(ctx, test); err != nil {
		return nil, err
	}
	// 布尔字段带默认值，false 需要在创建后单独写入
	if !test.IsActive || !test.IsOpenAccess {
		if err := s.Tests.UpdateFields(ctx, test.ID, map[string]interface{}{
			"is_active":      test.IsActive,
			"is_open_access": test.IsOpenAccess,
		}); err != nil {
			return nil, err
		}
	}
	logger.Log.Info("Test created", zap.Uint("testID", test.ID), zap.String("title", test.Title))
	return test, nil
}

func (s *TestService) Update(ctx context.Context, id uint, req TestRequest) (*model.Test, error) {
	test, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTitleFree(ctx, req.Title, id); err != nil {
		return nil, err
	}
	if err := applyTestRequest(test, req); err != nil {
		return nil, err
	}
	if err := s.Tests.Update(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

// Toggle 切换 isActive，停用的试卷不再出题
func (s *TestService) Toggle(ctx context.Context, id uint) (*model.Test, error) {
	test, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	test.IsActive = !test.IsActive
	if err := s.Tests.UpdateFields(ctx, id, map[string]interface{}{"is_active": test.IsActive}); err != nil {
		return nil, err
	}
	return test, nil
}

// UpdateAccess infinite 为开放访问；limited 需要 maxUsers >= 1。修改后清空已占名额。
func (s *TestService) UpdateAccess(ctx context.Context, id uint, req AccessRequest) (*model.Test, error) {
	test, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch req.Mode {
	case "infinite":
		test.IsOpenAccess = true
		test.MaxUsers = 0
	case "limited":
		if req.MaxUsers < 1 {
			return nil, util.ErrInvalidAccessLimit
		}
		test.IsOpenAccess = false
		test.MaxUsers = req.MaxUsers
	default:
		return nil, util.ErrInvalidAccessLimit
	}
	if err := s.Tests.UpdateFields(ctx, id, map[string]interface{}{
		"is_open_access": test.IsOpenAccess,
		"max_users":      test.MaxUsers,
	}); err != nil {
		return nil, err
	}
	if s.Access != nil {
		if err := s.Access.Reset(ctx, id); err != nil {
			logger.Log.Warn("Failed to reset reserved slots", zap.Error(err), zap.Uint("testID", id))
		}
	}
	return test, nil
}

func (s *TestService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Tests.Delete(ctx, id); err != nil {
		return err
	}
	if s.Access != nil {
		_ = s.Access.Reset(ctx, id)
	}
	return nil
}
