package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token  string
	expiry time.Time
}

// MemoryLock 单进程实现, 未启用 redis 时使用
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]memoryEntry), now: time.Now}
}

func (l *MemoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiry) {
		return "", nil
	}
	token := uuid.New().String()
	l.held[key] = memoryEntry{token: token, expiry: now.Add(ttl)}
	return token, nil
}

// Release 与 RedisLock 一致: 锁已过期并被别人拿走时不做任何事
func (l *MemoryLock) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}

// Obtain 阻塞直到拿到锁或 ctx 结束, 返回释放函数
func Obtain(ctx context.Context, l DistributedLock, key string, ttl, retry time.Duration) (func(), error) {
	token, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if token == "" {
		ticker := time.NewTicker(retry)
		defer ticker.Stop()
		for token == "" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
			if token, err = l.Acquire(ctx, key, ttl); err != nil {
				return nil, err
			}
		}
	}
	return func() {
		// 释放用独立 ctx, 调用方 ctx 可能已取消
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = l.Release(rctx, key, token)
	}, nil
}
