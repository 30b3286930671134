package repository

import (
	"context"
	"database/sql"
	"radiography_exam/internal/model"

	"gorm.io/gorm"
)

// ResultAggregate 按测试或按用户聚合的成绩统计
type ResultAggregate struct {
	Key          uint    `json:"key" gorm:"column:group_key"`
	Attempts     int64   `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
	BestScore    int     `json:"bestScore"`
	LastResultID uint    `json:"lastResultId"`
}

type AnalyticsRepository struct {
	DB *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{DB: db}
}

// 自增 id 与创建时间同序，用 MAX(id) 定位最近一次作答
func (r *AnalyticsRepository) aggregate(ctx context.Context, column string, filter string, args ...interface{}) ([]ResultAggregate, error) {
	var rows []ResultAggregate
	q := r.DB.WithContext(ctx).Model(&model.Result{}).
		Select(column + " AS group_key, COUNT(*) AS attempts, AVG(score) AS average_score, MAX(score) AS best_score, MAX(id) AS last_result_id").
		Where(column + " IS NOT NULL")
	if filter != "" {
		q = q.Where(filter, args...)
	}
	err := q.Group(column).Scan(&rows).Error
	return rows, err
}

func (r *AnalyticsRepository) ByTest(ctx context.Context) ([]ResultAggregate, error) {
	return r.aggregate(ctx, "test_id", "")
}

func (r *AnalyticsRepository) ByUser(ctx context.Context) ([]ResultAggregate, error) {
	return r.aggregate(ctx, "user_id", "")
}

func (r *AnalyticsRepository) ByUserForTest(ctx context.Context, testID uint) ([]ResultAggregate, error) {
	return r.aggregate(ctx, "user_id", "test_id = ?", testID)
}

func (r *AnalyticsRepository) AverageScore(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	if err := r.DB.WithContext(ctx).Model(&model.Result{}).Select("AVG(score)").Row().Scan(&avg); err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// LatestPerUser 某测试下每个用户最近一次成绩
func (r *AnalyticsRepository) LatestPerUser(ctx context.Context, testID uint) ([]model.Result, error) {
	var results []model.Result

	subquery := r.DB.Model(&model.Result{}).
		Select("MAX(id)").
		Where("test_id = ? AND user_id IS NOT NULL", testID).
		Group("user_id")

	err := r.DB.WithContext(ctx).Preload("User").
		Where("id IN (?)", subquery).
		Order("score DESC, id ASC").
		Find(&results).Error
	return results, err
}

func (r *AnalyticsRepository) ResultsByIDs(ctx context.Context, ids []uint) ([]model.Result, error) {
	var results []model.Result
	if len(ids) == 0 {
		return results, nil
	}
	err := r.DB.WithContext(ctx).Omit("detailed_results").Preload("Test").Where("id IN ?", ids).Find(&results).Error
	return results, err
}
