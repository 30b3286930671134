package repository

import (
	"context"
	"radiography_exam/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Upsert 以 (user_id, test_id) 为冲突键覆盖进度
func (r *ProgressRepository) Upsert(ctx context.Context, p *model.TestProgress) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "test_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"question_index", "total", "status", "updated_at"}),
	}).Create(p).Error
}

func (r *ProgressRepository) Find(ctx context.Context, userID, testID uint) (*model.TestProgress, error) {
	var p model.TestProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND test_id = ?", userID, testID).First(&p).Error
	return &p, err
}

// SetStatus 无对应行时不报错
func (r *ProgressRepository) SetStatus(ctx context.Context, userID, testID uint, status model.ProgressStatus) error {
	fields := map[string]interface{}{"status": status}
	if status == model.ProgressCompleted {
		fields["question_index"] = gorm.Expr("total")
	}
	return r.DB.WithContext(ctx).Model(&model.TestProgress{}).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Updates(fields).Error
}

// MarkStale 将 before 之前未更新的 active 行置为 exited
func (r *ProgressRepository) MarkStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.TestProgress{}).
		Where("status = ? AND updated_at < ?", model.ProgressActive, before).
		Update("status", model.ProgressExited)
	return res.RowsAffected, res.Error
}

func (r *ProgressRepository) ListActiveSince(ctx context.Context, since time.Time) ([]model.TestProgress, error) {
	var rows []model.TestProgress
	err := r.DB.WithContext(ctx).Preload("User").Preload("Test").
		Where("status = ? AND updated_at >= ?", model.ProgressActive, since).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) DeleteAll(ctx context.Context) error {
	return r.DB.WithContext(ctx).Where("1 = 1").Delete(&model.TestProgress{}).Error
}
