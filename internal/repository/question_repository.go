package repository

import (
	"context"
	"radiography_exam/internal/model"
	"radiography_exam/internal/util"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 计票乐观锁重试次数
const voteRetries = 8

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

// CreateBatch 在一个事务内批量插入
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(questions, 100).Error
	})
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, id).Error
	return &q, err
}

// ListByTest 按 id 升序返回，即创建顺序
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("id ASC").Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) CountByTest(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Where("test_id = ?", testID).Count(&count).Error
	return count, err
}

func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).Count(&count).Error
	return count, err
}

// Update 管理端编辑，同时推进 vote_version 使并发计票重读
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	q.VoteVersion++
	return r.DB.WithContext(ctx).Save(q).Error
}

func (r *QuestionRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Unscoped().Delete(&model.Question{}, id).Error
}

// IncrementVote 对 choiceIndex 计票加一；计票数组长度异常时先按零重建。
// 以 vote_version 做比较交换，冲突时重读重试。
func (r *QuestionRepository) IncrementVote(ctx context.Context, id uint, choiceIndex int) error {
	for attempt := 0; attempt < voteRetries; attempt++ {
		var q model.Question
		if err := r.DB.WithContext(ctx).Select("id", "choices", "choice_vote_counts", "vote_version").First(&q, id).Error; err != nil {
			return err
		}

		counts := q.VoteCounts()
		if choiceIndex < 0 || choiceIndex >= len(counts) {
			return util.ErrChoiceOutOfRange
		}
		counts[choiceIndex]++

		res := r.DB.WithContext(ctx).Model(&model.Question{}).
			Where("id = ? AND vote_version = ?", id, q.VoteVersion).
			Updates(map[string]interface{}{
				"choice_vote_counts": datatypes.JSONSlice[int](counts),
				"vote_version":       gorm.Expr("vote_version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}
	}
	return util.ErrVoteContention
}

// ResetVotes 清空全部计票，下一次作答时按零重建
func (r *QuestionRepository) ResetVotes(ctx context.Context) error {
	return r.DB.WithContext(ctx).Model(&model.Question{}).Where("1 = 1").
		Updates(map[string]interface{}{
			"choice_vote_counts": datatypes.JSONSlice[int]{},
			"vote_version":       gorm.Expr("vote_version + 1"),
		}).Error
}
