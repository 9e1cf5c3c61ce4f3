package blocktracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/pkg/cache"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/logger"
)

const (
	// DefaultAccount 框架账户, 几乎每个块都有它的交易
	DefaultAccount  = "0x1"
	DefaultCacheTTL = 5 * time.Second

	cacheKey = "latest_block"
)

// 高度来源
const (
	SourceBlockHeight = "block_height"
	SourceTimestamp   = "timestamp" // 节点没有返回高度时用秒级时间戳近似
	SourceNone        = "none"
)

type TransactionLister interface {
	AccountTransactions(ctx context.Context, addr string, start uint64, count int) ([]rpc.Transaction, error)
}

// LatestBlock 根据账户最新一笔交易估算的最新块
type LatestBlock struct {
	Height     uint64    `json:"height"`
	Source     string    `json:"source"`
	TxHash     string    `json:"txHash,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

type Tracker struct {
	chain   TransactionLister
	cache   cache.Cache
	account string
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// New account 为空时使用 0x1, c 为空时只用进程内缓存
func New(chain TransactionLister, c cache.Cache, account string, ttl time.Duration) *Tracker {
	if account == "" {
		account = DefaultAccount
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if c == nil {
		c = cache.NewMemoryCache(ttl, 2*ttl)
	}
	return &Tracker{
		chain:   chain,
		cache:   c,
		account: account,
		ttl:     ttl,
		log:     logger.Named("blocktracker"),
		now:     time.Now,
	}
}

// Latest 优先读缓存
func (t *Tracker) Latest(ctx context.Context) (LatestBlock, error) {
	var lb LatestBlock
	if err := t.cache.Get(ctx, cacheKey, &lb); err == nil {
		return lb, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		t.log.Warn("latest block cache read failed", zap.Error(err))
	}

	lb, err := t.Fetch(ctx)
	if err != nil {
		return LatestBlock{}, err
	}
	if err := t.cache.Set(ctx, cacheKey, lb, t.ttl); err != nil {
		t.log.Warn("latest block cache write failed", zap.Error(err))
	}
	return lb, nil
}

// Fetch 直接查询链上, 不走缓存
func (t *Tracker) Fetch(ctx context.Context) (LatestBlock, error) {
	txs, err := t.chain.AccountTransactions(ctx, t.account, 0, 1)
	if err != nil {
		return LatestBlock{}, fmt.Errorf("%w: list transactions of %s: %w", errno.ErrLatestBlockFailed, t.account, err)
	}
	lb := LatestBlock{Source: SourceNone, ObservedAt: t.now().UTC()}
	if len(txs) == 0 {
		return lb, nil
	}
	tx := txs[0]
	lb.TxHash = tx.Hash
	switch {
	case tx.BlockHeight > 0:
		lb.Height, lb.Source = tx.BlockHeight, SourceBlockHeight
	case tx.TimestampMillis > 0:
		lb.Height, lb.Source = tx.TimestampMillis/1000, SourceTimestamp
	}
	return lb, nil
}
