package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ziggly-wallet/internal/activity"
	"ziggly-wallet/internal/balance"
	"ziggly-wallet/internal/blocktracker"
	"ziggly-wallet/internal/executor"
	"ziggly-wallet/internal/handler"
	"ziggly-wallet/internal/payload"
	"ziggly-wallet/internal/priceindex"
	"ziggly-wallet/internal/provider"
	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/internal/server"
	"ziggly-wallet/internal/session"
	"ziggly-wallet/internal/token"
	"ziggly-wallet/pkg/cache"
	"ziggly-wallet/pkg/config"
	"ziggly-wallet/pkg/database"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/monitor"
	"ziggly-wallet/pkg/validator"
)

func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 初始化 Validator
	validator.Init()

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env, cfg.App.LogLevel)
	defer logger.Sync()
	monitor.Init()

	// 2. 连接 Redis (可选)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rdb, err = database.ConnectRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
	}
	locker := newLocker(cfg, rdb)

	// 3. 链上读取
	chain := rpc.NewClient(cfg.Chain.RpcUrl, rpc.WithTimeout(cfg.Chain.RpcTimeout))
	registry, err := token.FromConfig(cfg)
	if err != nil {
		logger.Fatal("token 配置错误", zap.Error(err))
	}
	tradeToken, ok := registry.Lookup(cfg.Trade.Token)
	if !ok {
		logger.Fatal("trade.token 不在 tokens 列表中", zap.String("token", cfg.Trade.Token))
	}
	balances := balance.NewReader(chain, registry)

	// 4. price index: L1 内存 + L2 redis
	var remote cache.Cache
	if rdb != nil {
		remote = cache.NewRedisCache(rdb, "ziggly:")
	}
	prices := priceindex.New(chain, registry,
		cache.NewMultiLevelCache(cache.NewMemoryCache(cfg.PriceIndex.CacheTTL, 2*cfg.PriceIndex.CacheTTL), remote),
		locker,
		priceindex.Options{
			Contract:    cfg.Contracts.Pump,
			Module:      cfg.Contracts.PumpModule,
			TargetSupra: parseDecimal("price_index.target_supra", cfg.PriceIndex.TargetSupra),
			CacheTTL:    cfg.PriceIndex.CacheTTL,
			RefreshSpec: cfg.PriceIndex.RefreshSpec,
		})

	// 最新块只缓存几秒, 用进程内缓存即可
	tracker := blocktracker.New(chain, nil, blocktracker.DefaultAccount, blocktracker.DefaultCacheTTL)

	// 5. 钱包会话
	hub := provider.NewHub(cfg.Provider.CallTimeout)
	sess := session.New(hub, session.Config{
		RequiredChainID:   cfg.Chain.RequiredChainID,
		AlternateChainIDs: cfg.Chain.AlternateChainIDs,
		DetectTimeout:     cfg.Provider.DetectTimeout,
		DetectInterval:    cfg.Provider.DetectInterval,
	})

	// 6. payload + 执行器
	buy, sell := payload.PumpRoutes(cfg.Contracts.Pump, cfg.Contracts.PumpModule, tradeToken.PreCA, tradeToken.MainCA, tradeToken.Decimals)
	builder := payload.NewBuilder(map[payload.Kind]payload.Route{
		payload.KindBuy:      buy,
		payload.KindSell:     sell,
		payload.KindTransfer: payload.TransferRoute(),
	}, payload.WithExpiryWindow(cfg.Tx.ExpiryWindow))

	native := registry.Native()
	exec := executor.New(sess, chain, balances, builder, locker, executor.Config{
		RequiredChainID: cfg.Chain.RequiredChainID,
		ExplorerURL:     cfg.Chain.ExplorerUrl,
		NativeSymbol:    native.Symbol,
		TradeToken:      tradeToken.Symbol(),
		LockTTL:         cfg.Tx.LockTTL,
	})
	policy := newPolicy(cfg, prices.RatioFor(tradeToken.Ticker))

	// 7. activity: MQ 生产 + 消费
	producer, consumer := newMQ(cfg, rdb)
	topic := cfg.PriceIndex.ActivityTopic
	feed := activity.NewFeed(cfg.PriceIndex.ActivityLength)
	recorder := activity.NewRecorder(producer, topic)

	// 8. HTTP
	router := server.NewHTTPRouter(server.Handlers{
		Session:  handler.NewSessionHandler(sess),
		Balance:  handler.NewBalanceHandler(balances, sess, tradeToken.Symbol()),
		Trade:    handler.NewTradeHandler(exec, policy, recorder, native.Symbol, tradeToken.Symbol()),
		Market:   handler.NewMarketHandler(prices, feed),
		Block:    handler.NewBlockHandler(tracker),
		Provider: hub,
	})

	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, router)
	app.Go(func(ctx context.Context) error {
		return feed.Run(ctx, consumer, topic)
	})
	if err := prices.Start(); err != nil {
		logger.Fatal("price index 定时任务启动失败", zap.Error(err))
	}

	// 关闭顺序与注册相反
	app.OnShutdown(func() {
		if rdb != nil {
			_ = rdb.Close()
		}
	})
	app.OnShutdown(func() { _ = producer.Close(); _ = consumer.Close() })
	app.OnShutdown(hub.Close)
	app.OnShutdown(sess.Close)
	app.OnShutdown(prices.Stop)

	app.Run()
}
