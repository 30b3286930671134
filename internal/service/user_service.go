package service

import (
	"context"
	"errors"
	"radiography_exam/internal/model"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/util"
	"time"

	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{UserRepo: userRepo}
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.UserRepo.List(ctx)
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.UserRepo.Count(ctx)
}

func (s *UserService) Get(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// Toggle 启用/停用账号，返回新的状态
func (s *UserService) Toggle(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.UserRepo.UpdateFields(ctx, id, map[string]interface{}{"is_active": !user.IsActive}); err != nil {
		return nil, err
	}
	user.IsActive = !user.IsActive
	return user, nil
}

func (s *UserService) TouchActivity(ctx context.Context, id uint) error {
	return s.UserRepo.TouchActivity(ctx, id, time.Now())
}
