// Package testutil 提供测试用的内存数据库与 Redis
package testutil

import (
	"testing"

	"radiography_exam/internal/model"
	"radiography_exam/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 返回已迁移的内存 sqlite，单连接保证所有查询看到同一个库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// NewRedis 启动 miniredis 并返回客户端
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

// SeedTest 创建一份试卷及其题目，questions 中每项为 {题干, 正确答案}
func SeedTest(t *testing.T, db *gorm.DB, title string, correct ...string) (*model.Test, []model.Question) {
	t.Helper()
	test := &model.Test{Title: title, IsActive: true, IsOpenAccess: true, TimeLimit: 30}
	require.NoError(t, db.Create(test).Error)

	questions := make([]model.Question, 0, len(correct))
	for i, answer := range correct {
		q := model.Question{
			TestID:        test.ID,
			Title:         title + " question " + string(rune('1'+i)),
			Choices:       []string{"Lateral", "Oblique", "AP", "PA"},
			CorrectAnswer: answer,
			Explanation:   "explanation",
		}
		require.NoError(t, db.Create(&q).Error)
		questions = append(questions, q)
	}
	return test, questions
}
