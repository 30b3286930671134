package repository

import (
	"context"
	"radiography_exam/internal/model"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

func (r *TestRepository) Create(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Create(test).Error
}

func (r *TestRepository) FindByID(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.WithContext(ctx).First(&test, id).Error
	return &test, err
}

func (r *TestRepository) FindByTitle(ctx context.Context, title string) (*model.Test, error) {
	var test model.Test
	err := r.DB.WithContext(ctx).Where("title = ?", title).First(&test).Error
	return &test, err
}

func (r *TestRepository) List(ctx context.Context, activeOnly bool) ([]model.Test, error) {
	var tests []model.Test
	q := r.DB.WithContext(ctx).Order("id ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&tests).Error
	return tests, err
}

func (r *TestRepository) Update(ctx context.Context, test *model.Test) error {
	return r.DB.WithContext(ctx).Save(test).Error
}

// UpdateFields 使用 map 更新，零值（如 is_active=false）也会写入
func (r *TestRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.Test{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 物理删除试卷及其题目，释放唯一标题
func (r *TestRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("test_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Test{}, id).Error
	})
}

func (r *TestRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	var count int64
	q := r.DB.WithContext(ctx).Model(&model.Test{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Count(&count).Error
	return count, err
}
