package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrSessionBusy = errors.New("session is being modified concurrently")

// Store 以会话ID为键的服务端会话存储
type Store interface {
	// Get 会话不存在时返回空 State
	Get(ctx context.Context, sid string) (*State, error)
	// Update 对同一会话的写入串行化，fn 返回错误时不写入
	Update(ctx context.Context, sid string, fn func(*State) error) (*State, error)
	Delete(ctx context.Context, sid string) error
}

const (
	keyPrefix         = "session:"
	defaultMaxRetries = 10
)

type RedisStore struct {
	Redis      *redis.Client
	TTL        time.Duration
	MaxRetries int
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{Redis: rdb, TTL: ttl, MaxRetries: defaultMaxRetries}
}

func redisKey(sid string) string {
	return keyPrefix + sid
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (*State, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return &State{}, nil
	}
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStore) Get(ctx context.Context, sid string) (*State, error) {
	return load(ctx, s.Redis, redisKey(sid))
}

func (s *RedisStore) Update(ctx context.Context, sid string, fn func(*State) error) (*State, error) {
	key := redisKey(sid)
	var out *State

	txf := func(tx *redis.Tx) error {
		st, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.TTL)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	for i := 0; i < s.MaxRetries; i++ {
		err := s.Redis.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrSessionBusy
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	return s.Redis.Del(ctx, redisKey(sid)).Err()
}
