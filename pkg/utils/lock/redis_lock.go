package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DistributedLock 定义分布式锁接口
type DistributedLock interface {
	// Acquire 尝试获取锁, 不阻塞
	// key: 锁的唯一标识
	// ttl: 锁的过期时间
	// 返回: (持有者 token, 为空表示锁被占用; error)
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Release 释放锁, 只有 token 匹配当前持有者时才删除
	Release(ctx context.Context, key, token string) error
}

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock 基于 Redis SET NX 的实现, value 为每次加锁生成的 token
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	success, err := l.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !success {
		return "", nil
	}
	return token, nil
}

func (l *RedisLock) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	err := releaseScript.Run(ctx, l.client, []string{"lock:" + key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
