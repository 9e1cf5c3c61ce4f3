package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Tx         TxConfig         `mapstructure:"tx"`
	Contracts  ContractsConfig  `mapstructure:"contracts"`
	Trade      TradeConfig      `mapstructure:"trade"`
	Tokens     []TokenConfig    `mapstructure:"tokens"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	PriceIndex PriceIndexConfig `mapstructure:"price_index"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	LogLevel string `mapstructure:"log_level"`
}

type ChainConfig struct {
	RpcUrl            string        `mapstructure:"rpc_url"`
	RpcTimeout        time.Duration `mapstructure:"rpc_timeout"`
	RequiredChainID   string        `mapstructure:"required_chain_id"`
	AlternateChainIDs []string      `mapstructure:"alternate_chain_ids"` // 可以自动切换到主网的网络 (testnet)
	ExplorerUrl       string        `mapstructure:"explorer_url"`
	NativeSymbol      string        `mapstructure:"native_symbol"`
	NativeDecimals    int32         `mapstructure:"native_decimals"`
	NativePriceUSD    string        `mapstructure:"native_price_usd"`
}

type ProviderConfig struct {
	DetectTimeout  time.Duration `mapstructure:"detect_timeout"`
	DetectInterval time.Duration `mapstructure:"detect_interval"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
}

type TxConfig struct {
	ExpiryWindow time.Duration `mapstructure:"expiry_window"`
	LockBackend  string        `mapstructure:"lock_backend"` // "memory" or "redis"
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
}

type ContractsConfig struct {
	Pump       string `mapstructure:"pump"`
	PumpModule string `mapstructure:"pump_module"`
}

// TradeConfig 选择 minimum-received 的计算策略
type TradeConfig struct {
	Policy       string `mapstructure:"policy"` // "slippage" or "ratio"
	SlippagePct  string `mapstructure:"slippage_pct"`
	RatioFactor  string `mapstructure:"ratio_factor"`
	SupraPerUnit string `mapstructure:"supra_per_unit"` // 固定汇率, 为空时使用 price index
	Token        string `mapstructure:"token"`          // 交易的 token ticker
}

type TokenConfig struct {
	Name     string `mapstructure:"name"`
	Ticker   string `mapstructure:"ticker"`
	PreCA    string `mapstructure:"pre_ca"`
	MainCA   string `mapstructure:"main_ca"`
	Decimals int32  `mapstructure:"decimals"`
	PriceUSD string `mapstructure:"price_usd"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

type PriceIndexConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RefreshSpec    string        `mapstructure:"refresh_spec"`
	TargetSupra    string        `mapstructure:"target_supra"`
	ActivityTopic  string        `mapstructure:"activity_topic"`
	ActivityLength int           `mapstructure:"activity_length"`
}

var Global Config

// Init 加载全局配置，失败直接退出进程
func Init() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}
	Global = *cfg
	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load reads config.yaml from the given paths (default "." and "./config"),
// applies environment overrides (CHAIN_RPC_URL etc.) and defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Printf("Warning: Config file not found, using defaults and environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查跨字段约束
func (c *Config) Validate() error {
	if c.Chain.RequiredChainID == "" {
		return errors.New("chain.required_chain_id is required")
	}
	if c.Provider.DetectInterval <= 0 || c.Provider.DetectTimeout < c.Provider.DetectInterval {
		return fmt.Errorf("provider.detect_interval (%s) must be > 0 and <= detect_timeout (%s)",
			c.Provider.DetectInterval, c.Provider.DetectTimeout)
	}
	if c.Tx.ExpiryWindow <= 0 {
		return errors.New("tx.expiry_window must be positive")
	}
	if floor := c.MinLockTTL(); c.Tx.LockTTL < floor {
		return fmt.Errorf("tx.lock_ttl (%s) must cover one sequence fetch and two wallet calls (>= %s)", c.Tx.LockTTL, floor)
	}
	switch c.Trade.Policy {
	case "slippage", "ratio":
	default:
		return fmt.Errorf("trade.policy must be one of [slippage ratio], got %q", c.Trade.Policy)
	}
	switch c.Redis.MQType {
	case "redis", "kafka":
	default:
		return fmt.Errorf("redis.mq_type must be one of [redis kafka], got %q", c.Redis.MQType)
	}
	return nil
}

// MinLockTTL 发送者锁在一次执行中最长被持有的时间:
// 读取 sequence + createRawTransactionData + sendTransaction
func (c *Config) MinLockTTL() time.Duration {
	return 2*c.Provider.CallTimeout + c.Chain.RpcTimeout
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("chain.rpc_url", "https://rpc-mainnet.supra.com")
	v.SetDefault("chain.rpc_timeout", 15*time.Second)
	v.SetDefault("chain.required_chain_id", "8")
	v.SetDefault("chain.alternate_chain_ids", []string{"6"})
	v.SetDefault("chain.explorer_url", "https://suprascan.io")
	v.SetDefault("chain.native_symbol", "SUPRA")
	v.SetDefault("chain.native_decimals", 8)
	v.SetDefault("chain.native_price_usd", "0.01")

	v.SetDefault("provider.detect_timeout", 5*time.Second)
	v.SetDefault("provider.detect_interval", 500*time.Millisecond)
	v.SetDefault("provider.call_timeout", 2*time.Minute)

	v.SetDefault("tx.expiry_window", 30*time.Second)
	v.SetDefault("tx.lock_backend", "memory")
	v.SetDefault("tx.lock_ttl", 5*time.Minute)

	v.SetDefault("contracts.pump", "0xc2896ec7a6ad3ac8a50626db9b832a142647ff065af6b30a089f64627c0c4a2b")
	v.SetDefault("contracts.pump_module", "pump")

	v.SetDefault("trade.policy", "slippage")
	v.SetDefault("trade.slippage_pct", "1")
	v.SetDefault("trade.ratio_factor", "0.98")
	v.SetDefault("trade.supra_per_unit", "")
	v.SetDefault("trade.token", "ZIGGLY")

	v.SetDefault("tokens", []map[string]interface{}{
		{
			"name":      "Ziggly",
			"ticker":    "ZIGGLY",
			"pre_ca":    "0x8bcb5e4c66a82dc794145d911c59cba5be86bfa2c38f3fd9d2d9fefb78e37495::PREZIGGLY::PREZIGGLY",
			"main_ca":   "0x8bcb5e4c66a82dc794145d911c59cba5be86bfa2c38f3fd9d2d9fefb78e37495::ZIGGLY::ZIGGLY",
			"decimals":  6,
			"price_usd": "0.00028",
		},
		{
			"name":      "Supra Mummy",
			"ticker":    "Mummy",
			"pre_ca":    "0x729982d3ad6130276c6972880810b7ddabe6d7fb59b5029fa5bed5674ae75a70::PREMUMMY::PREMUMMY",
			"main_ca":   "0x729982d3ad6130276c6972880810b7ddabe6d7fb59b5029fa5bed5674ae75a70::MUMMY::MUMMY",
			"decimals":  6,
			"price_usd": "0.00028",
		},
	})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mq_type", "redis")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "ziggly_activity_group")

	v.SetDefault("price_index.cache_ttl", 2*time.Minute)
	v.SetDefault("price_index.refresh_spec", "@every 1m")
	v.SetDefault("price_index.target_supra", "500000")
	v.SetDefault("price_index.activity_topic", "ziggly_events_tx")
	v.SetDefault("price_index.activity_length", 50)
}
