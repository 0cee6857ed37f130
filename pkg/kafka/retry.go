package kafka

import (
	"context"
	"fmt"
	"time"

	"classdoc-go/pkg/log"
	"classdoc-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
)

// AttemptCounter 累计任务的失败次数，进程重启后计数仍然保留。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string)
}

type redisAttemptCounter struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisAttemptCounter 使用 Redis 保存失败计数，计数在 ttl 后过期。
func NewRedisAttemptCounter(redisClient *redis.Client, ttl time.Duration) AttemptCounter {
	return &redisAttemptCounter{redisClient: redisClient, ttl: ttl}
}

func (c *redisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.redisClient.Expire(ctx, key, c.ttl).Err()
	return n, nil
}

func (c *redisAttemptCounter) Reset(ctx context.Context, key string) {
	_ = c.redisClient.Del(ctx, key).Err()
}

func attemptsKey(runID string) string {
	return fmt.Sprintf("kafka:attempts:%s", runID)
}

// ProcessWithRetry 在当前进程内重试任务，直到成功、失败次数达到 maxAttempts 或 ctx 被取消。
// 返回 nil 表示处理成功；返回错误时调用方仍应提交 offset，ctx 取消的情况除外。
func ProcessWithRetry(ctx context.Context, processor TaskProcessor, counter AttemptCounter, task tasks.EvaluationRecordTask, maxAttempts int64, backoff time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	key := attemptsKey(task.RunID)
	var local int64
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			counter.Reset(ctx, key)
			return nil
		}
		local++
		attempts, incErr := counter.Incr(ctx, key)
		if incErr != nil || attempts < local {
			// Redis 不可用时以本地计数为准
			attempts = local
		}
		log.Warnw("[Kafka.ProcessWithRetry] 处理评分记录任务失败", "runID", task.RunID, "attempt", attempts, "maxAttempts", maxAttempts, "error", err)
		if attempts >= maxAttempts {
			counter.Reset(ctx, key)
			return fmt.Errorf("task %s failed after %d attempts: %w", task.RunID, attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
