package main

import (
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ziggly-wallet/internal/payload"
	"ziggly-wallet/internal/service/mq"
	"ziggly-wallet/pkg/config"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/utils/lock"
)

const activityGroup = "ziggly_activity_group"

// newLocker 多实例部署时用 redis 锁, 否则进程内锁
func newLocker(cfg config.Config, rdb *redis.Client) lock.DistributedLock {
	if cfg.Tx.LockBackend == "redis" {
		if rdb == nil {
			logger.Fatal("tx.lock_backend=redis 需要 redis.enabled=true")
		}
		return lock.NewRedisLock(rdb)
	}
	return lock.NewMemoryLock()
}

// newMQ 选择 activity 的消息队列实现
func newMQ(cfg config.Config, rdb *redis.Client) (mq.Producer, mq.Consumer) {
	switch {
	case cfg.Redis.MQType == "kafka":
		logger.Info("activity MQ: kafka", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers), mq.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	case rdb != nil:
		name, _ := os.Hostname()
		logger.Info("activity MQ: redis stream", zap.String("consumer", name))
		maxLen := int64(cfg.PriceIndex.ActivityLength) * 10
		return mq.NewRedisProducer(rdb, maxLen), mq.NewRedisConsumer(rdb, activityGroup, name)
	default:
		logger.Info("activity MQ: in-process")
		broker := mq.NewMemoryBroker()
		return broker, broker
	}
}

// newPolicy minimum received 策略
func newPolicy(cfg config.Config, live payload.RatioSource) payload.MinimumReceivedPolicy {
	if cfg.Trade.Policy == "ratio" {
		var source payload.RatioSource = live
		if cfg.Trade.SupraPerUnit != "" {
			source = payload.FixedRatio(parseDecimal("trade.supra_per_unit", cfg.Trade.SupraPerUnit))
		}
		return payload.PriceRatio{Source: source, Factor: parseDecimal("trade.ratio_factor", cfg.Trade.RatioFactor)}
	}
	policy, err := payload.NewSlippageTolerance(parseDecimal("trade.slippage_pct", cfg.Trade.SlippagePct))
	if err != nil {
		logger.Fatal("trade.slippage_pct 配置错误", zap.Error(err))
	}
	return policy
}

func parseDecimal(key, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Fatal("配置不是合法数字", zap.String("key", key), zap.String("value", raw), zap.Error(err))
	}
	return d
}
