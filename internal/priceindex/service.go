package priceindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/internal/token"
	"ziggly-wallet/pkg/cache"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/monitor"
	"ziggly-wallet/pkg/utils/lock"
)

const (
	indexCacheKey  = "price_index:tokens"
	configCacheKey = "price_index:pump_config"
	refreshLockKey = "cron:lock:price_index"

	DefaultCacheTTL    = 2 * time.Minute
	DefaultRefreshSpec = "@every 1m"
)

// DefaultTargetSupra 上线所需募集的 SUPRA
var DefaultTargetSupra = decimal.NewFromInt(500_000)

// ChainReader price index 依赖的 RPC 能力
type ChainReader interface {
	CoinInfo(ctx context.Context, coinType string) (rpc.CoinInfo, error)
	View(ctx context.Context, function string, typeArgs []string, args []interface{}) ([]json.RawMessage, error)
}

type Entry struct {
	Name            string          `json:"name"`
	Ticker          string          `json:"ticker"`
	CoinType        string          `json:"coinType"`
	Symbol          string          `json:"symbol"`
	Decimals        int32           `json:"decimals"`
	Pool            Pool            `json:"pool"`
	TokensPerSupra  decimal.Decimal `json:"tokensPerSupra"`
	BondingProgress decimal.Decimal `json:"bondingProgress"`
	RemainingTokens decimal.Decimal `json:"remainingTokens"`
	SupraInPool     decimal.Decimal `json:"supraInPool"`
	Status          string          `json:"status"`
}

type Index struct {
	Tokens    []Entry   `json:"tokens"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Find 按 ticker / symbol 查找
func (i Index) Find(name string) (Entry, bool) {
	for _, e := range i.Tokens {
		if equalFold(e.Ticker, name) || equalFold(e.Symbol, name) {
			return e, true
		}
	}
	return Entry{}, false
}

type Options struct {
	Contract    string
	Module      string
	TargetSupra decimal.Decimal
	CacheTTL    time.Duration
	RefreshSpec string
}

type Service struct {
	chain    ChainReader
	registry *token.Registry
	cache    cache.Cache
	locker   lock.DistributedLock
	opts     Options
	group    singleflight.Group
	cron     *cron.Cron
	log      *zap.Logger
}

// New c 为 nil 时只用进程内缓存, locker 为 nil 时用内存锁
func New(chain ChainReader, registry *token.Registry, c cache.Cache, locker lock.DistributedLock, opts Options) *Service {
	if opts.Module == "" {
		opts.Module = "pump"
	}
	if !opts.TargetSupra.IsPositive() {
		opts.TargetSupra = DefaultTargetSupra
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.RefreshSpec == "" {
		opts.RefreshSpec = DefaultRefreshSpec
	}
	if c == nil {
		c = cache.NewMultiLevelCache(cache.NewMemoryCache(opts.CacheTTL, 2*opts.CacheTTL), nil)
	}
	if locker == nil {
		locker = lock.NewMemoryLock()
	}
	return &Service{
		chain:    chain,
		registry: registry,
		cache:    c,
		locker:   locker,
		opts:     opts,
		log:      logger.Named("priceindex"),
	}
}

// Index 优先读缓存, 未命中时合并并发请求只查一次链
func (s *Service) Index(ctx context.Context) (Index, error) {
	var idx Index
	if err := s.cache.Get(ctx, indexCacheKey, &idx); err == nil {
		return idx, nil
	}
	v, err, _ := s.group.Do(indexCacheKey, func() (interface{}, error) {
		return s.Refresh(ctx)
	})
	if err != nil {
		return Index{}, err
	}
	return v.(Index), nil
}

// Refresh 重新读取所有 token 的 pool 数据并写入缓存
func (s *Service) Refresh(ctx context.Context) (Index, error) {
	tokens := s.registry.All()
	entries := make([]Entry, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tokens {
		g.Go(func() error {
			entry, err := s.entry(gctx, t)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Index{}, fmt.Errorf("%w: %w", errno.ErrPriceIndexFailed, err)
	}

	idx := Index{Tokens: entries, UpdatedAt: time.Now().UTC()}
	if err := s.cache.Set(ctx, indexCacheKey, idx, s.opts.CacheTTL); err != nil {
		s.log.Warn("cache price index failed", zap.Error(err))
	}
	for _, e := range entries {
		progress, _ := e.BondingProgress.Float64()
		monitor.Business.ObservePriceIndex(e.Ticker, progress)
	}
	return idx, nil
}

func (s *Service) entry(ctx context.Context, t token.Token) (Entry, error) {
	native := s.registry.Native()

	// 1. coin info, 失败时沿用配置里的精度
	decimals := t.Decimals
	info, err := s.chain.CoinInfo(ctx, t.CoinType())
	switch {
	case err == nil:
		decimals = info.Decimals
	case fatal(err):
		return Entry{}, fmt.Errorf("coin info %s: %w", t.Ticker, err)
	default:
		s.log.Warn("coin info unavailable", zap.String("token", t.Ticker), zap.Error(err))
	}

	// 2. pool, 读不到按空池处理
	var pool Pool
	values, err := s.chain.View(ctx, s.function("get_pool"), []string{t.PreCA, t.MainCA}, nil)
	if err == nil {
		pool, err = decodePool(values)
	}
	if err != nil {
		if fatal(err) {
			return Entry{}, fmt.Errorf("pool %s: %w", t.Ticker, err)
		}
		s.log.Warn("pool unavailable", zap.String("token", t.Ticker), zap.Error(err))
		pool = Pool{}
	}

	return Entry{
		Name:            t.Name,
		Ticker:          t.Ticker,
		CoinType:        t.CoinType(),
		Symbol:          t.Symbol(),
		Decimals:        decimals,
		Pool:            pool,
		TokensPerSupra:  pool.TokensPerSupra(decimals, native.Decimals),
		BondingProgress: pool.BondingProgress(s.opts.TargetSupra, native.Decimals),
		RemainingTokens: decimal.NewFromUint64(pool.RealToken).Shift(-decimals),
		SupraInPool:     decimal.NewFromUint64(pool.RealSupra).Shift(-native.Decimals),
		Status:          pool.Status(),
	}, nil
}

// PumpConfig 读取合约全局配置, 同样走缓存
func (s *Service) PumpConfig(ctx context.Context) (PumpConfig, error) {
	var cfg PumpConfig
	if err := s.cache.Get(ctx, configCacheKey, &cfg); err == nil {
		return cfg, nil
	}
	v, err, _ := s.group.Do(configCacheKey, func() (interface{}, error) {
		values, err := s.chain.View(ctx, s.function("get_config"), nil, nil)
		if err != nil {
			return PumpConfig{}, fmt.Errorf("%w: %w", errno.ErrPriceIndexFailed, err)
		}
		cfg, err := decodePumpConfig(values)
		if err != nil {
			return PumpConfig{}, fmt.Errorf("%w: %w", errno.ErrPriceIndexFailed, err)
		}
		if err := s.cache.Set(ctx, configCacheKey, cfg, s.opts.CacheTTL); err != nil {
			s.log.Warn("cache pump config failed", zap.Error(err))
		}
		return cfg, nil
	})
	if err != nil {
		return PumpConfig{}, err
	}
	return v.(PumpConfig), nil
}

// Start 注册定时刷新任务
func (s *Service) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.opts.RefreshSpec, s.refreshJob); err != nil {
		return fmt.Errorf("schedule price index refresh %q: %w", s.opts.RefreshSpec, err)
	}
	s.cron.Start()
	s.log.Info("price index refresh scheduled", zap.String("spec", s.opts.RefreshSpec))
	return nil
}

func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("price index refresh stopped")
}

func (s *Service) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. 获取分布式锁, 多实例只有一个刷新
	lockToken, err := s.locker.Acquire(ctx, refreshLockKey, 30*time.Second)
	if err != nil || lockToken == "" {
		s.log.Debug("price index refresh skipped, lock held elsewhere", zap.Error(err))
		return
	}
	defer s.locker.Release(context.Background(), refreshLockKey, lockToken)

	// 2. 刷新
	idx, err := s.Refresh(ctx)
	if err != nil {
		s.log.Error("price index refresh failed", zap.Error(err))
		return
	}
	s.log.Info("price index refreshed", zap.Int("tokens", len(idx.Tokens)))
}

// RatioFor 返回某个 token 的实时汇率, 供 PriceRatio 滑点策略使用
func (s *Service) RatioFor(name string) *Ratio {
	return &Ratio{svc: s, name: name}
}

// Ratio 1 个 token 值多少 SUPRA = 1 / tokensPerSupra
type Ratio struct {
	svc  *Service
	name string
}

func (r *Ratio) SupraPerToken(ctx context.Context) (decimal.Decimal, error) {
	idx, err := r.svc.Index(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	e, ok := idx.Find(r.name)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: token %s not in price index", errno.ErrNotFound, r.name)
	}
	if !e.TokensPerSupra.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s pool has no reserves", errno.ErrPriceIndexFailed, e.Ticker)
	}
	return decimal.NewFromInt(1).DivRound(e.TokensPerSupra, 16), nil
}

func (s *Service) function(name string) string {
	return s.opts.Contract + "::" + s.opts.Module + "::" + name
}

// fatal 网络不可达或 ctx 结束时整个刷新失败, 其余错误只影响单个 token
func fatal(err error) bool {
	return errors.Is(err, rpc.ErrUnreachable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
