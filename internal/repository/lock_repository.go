package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript 只删除自己持有的锁，避免锁过期后误删他人的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockRepository 定义了按键互斥的分布式锁。
type LockRepository interface {
	// TryAcquire 尝试获取锁，成功时返回释放用的 token。
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type redisLockRepository struct {
	redisClient *redis.Client
}

// NewLockRepository 创建一个新的基于 Redis SETNX 的 LockRepository。
func NewLockRepository(redisClient *redis.Client) LockRepository {
	return &redisLockRepository{redisClient: redisClient}
}

func lockKey(key string) string {
	return "upload:lock:" + key
}

// TryAcquire 使用 SET NX PX 获取锁。
func (r *redisLockRepository) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.redisClient.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release 释放锁。
func (r *redisLockRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.redisClient, []string{lockKey(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
