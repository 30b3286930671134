package service

import (
	"context"
	"fmt"
	"radiography_exam/internal/model"
	"radiography_exam/internal/util"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
)

// 已占位直接通过；未满则加入集合；已满返回 0
var reserveSlotScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return 1
end
if redis.call('SCARD', KEYS[1]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// AccessService 对非开放试卷按 maxUsers 控制参与人数
type AccessService struct {
	Redis   *redis.Client
	enforce atomic.Bool
}

func NewAccessService(rdb *redis.Client, enforce bool) *AccessService {
	s := &AccessService{Redis: rdb}
	s.enforce.Store(enforce)
	return s
}

func slotKey(testID uint) string {
	return fmt.Sprintf("test:slots:%d", testID)
}

// HolderFor 登录用户按用户ID占位，匿名会话按会话ID
func HolderFor(userID uint, sid string) string {
	if userID != 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return "session:" + sid
}

func (s *AccessService) SetEnforce(enforce bool) {
	s.enforce.Store(enforce)
}

// Reserve 原子地为 holder 预留名额，名额已满返回 ErrTestFull
func (s *AccessService) Reserve(ctx context.Context, test *model.Test, holder string) error {
	if s == nil || !s.enforce.Load() || !test.LimitsAttempts() {
		return nil
	}
	ok, err := reserveSlotScript.Run(ctx, s.Redis, []string{slotKey(test.ID)}, holder, test.MaxUsers).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return util.ErrTestFull
	}
	return nil
}

func (s *AccessService) Used(ctx context.Context, testID uint) (int64, error) {
	return s.Redis.SCard(ctx, slotKey(testID)).Result()
}

// Reset 修改访问策略后清空已占名额
func (s *AccessService) Reset(ctx context.Context, testID uint) error {
	return s.Redis.Del(ctx, slotKey(testID)).Err()
}
