package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ziggly-wallet/pkg/logger"
)

// MultiLevelCache 实现多级缓存 (L1: Memory, L2: Redis)
type MultiLevelCache struct {
	local    Cache
	remote   Cache
	backfill time.Duration
}

// NewMultiLevelCache remote 为 nil 时退化为只有 L1 (未启用 redis)
func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:    local,
		remote:   remote,
		backfill: time.Minute,
	}
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.remote == nil {
		return m.local.Set(ctx, key, value, ttl)
	}
	// L1 的 TTL 取 L2 的一半, 多实例之间最多脏半个周期
	if err := m.local.Set(ctx, key, value, ttl/2); err != nil {
		logger.Warn("L1 cache set failed", zap.String("key", key), zap.Error(err))
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	// 1. 查 L1
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}
	if m.remote == nil {
		return ErrCacheMiss
	}

	// 2. 查 L2
	if err := m.remote.Get(ctx, key, target); err != nil {
		return ErrCacheMiss
	}
	// L2 Hit -> 回写 L1
	_ = m.local.Set(ctx, key, target, m.backfill)
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	if m.remote == nil {
		return nil
	}
	return m.remote.Delete(ctx, key)
}
