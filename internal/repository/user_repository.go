package repository

import (
	"context"
	"radiography_exam/internal/model"
	"strings"
	"time"

	"gorm.io/gorm"
)

// lastSeen 只在超过该间隔后刷新
const lastSeenInterval = time.Minute

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	return &user, err
}

func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Save(user).Error
}

func (r *UserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Order("created_at DESC, id DESC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Count(&count).Error
	return count, err
}

func (r *UserRepository) CountWhere(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).Where(query, args...).Count(&count).Error
	return count, err
}

// TouchActivity 更新 last_active；last_seen 超过一分钟才刷新
func (r *UserRepository) TouchActivity(ctx context.Context, id uint, now time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_active": now,
			"last_seen":   gorm.Expr("CASE WHEN last_seen IS NULL OR last_seen < ? THEN ? ELSE last_seen END", now.Add(-lastSeenInterval), now),
		}).Error
}

func (r *UserRepository) SetPresence(ctx context.Context, id uint, online bool, now time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"is_online": online,
			"last_seen": now,
		}).Error
}

// ClearPresence 进程启动时重置残留的在线标记
func (r *UserRepository) ClearPresence(ctx context.Context) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("is_online = ?", true).
		UpdateColumn("is_online", false).Error
}

func (r *UserRepository) ListActiveSince(ctx context.Context, since time.Time) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Where("last_active >= ?", since).Order("last_active DESC").Find(&users).Error
	return users, err
}

// DeleteStudents 物理删除非管理员账号及其成绩与进度，返回被删除的ID
func (r *UserRepository) DeleteStudents(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Where("role <> ?", model.Admin).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		// 先删外键引用方
		if err := tx.Unscoped().Where("user_id IN ?", ids).Delete(&model.Result{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id IN ?", ids).Delete(&model.TestProgress{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id IN ?", ids).Delete(&model.User{}).Error
	})
	return ids, err
}
