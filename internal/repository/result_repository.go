package repository

import (
	"context"
	"radiography_exam/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

func (r *ResultRepository) Create(ctx context.Context, result *model.Result) error {
	return r.DB.WithContext(ctx).Create(result).Error
}

func (r *ResultRepository) FindByID(ctx context.Context, id uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).Preload("Test").First(&result, id).Error
	return &result, err
}

func (r *ResultRepository) FindByAttemptID(ctx context.Context, attemptID string) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&result).Error
	return &result, err
}

func (r *ResultRepository) ListByUser(ctx context.Context, userID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.WithContext(ctx).Preload("Test").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&results).Error
	return results, err
}

func (r *ResultRepository) LatestForUserTest(ctx context.Context, userID, testID uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.WithContext(ctx).Preload("Test").
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("created_at DESC, id DESC").
		First(&result).Error
	return &result, err
}

func (r *ResultRepository) ListByTest(ctx context.Context, testID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.WithContext(ctx).Preload("User").
		Where("test_id = ?", testID).
		Order("created_at DESC, id DESC").
		Find(&results).Error
	return results, err
}

// ListSummaries 不加载判分明细，供统计使用
func (r *ResultRepository) ListSummaries(ctx context.Context) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.WithContext(ctx).
		Select("id", "test_id", "user_id", "score", "total_questions", "correct_answers", "time_taken", "created_at").
		Order("created_at DESC, id DESC").
		Find(&results).Error
	return results, err
}

func (r *ResultRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Result{}).Count(&count).Error
	return count, err
}

func (r *ResultRepository) DeleteAll(ctx context.Context) error {
	return r.DB.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&model.Result{}).Error
}
