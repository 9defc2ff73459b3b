package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Storage       StorageConfig       `yaml:"storage"`
	Engine        EngineConfig        `yaml:"engine"`
	TokenRegistry TokenRegistryConfig `yaml:"tokenRegistry"`
	Accounts      AccountsConfig      `yaml:"accounts"`
	Webhooks      WebhooksConfig      `yaml:"webhooks"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	Development bool   `yaml:"development"`
}

// StorageConfig selects and configures the durable blob store.
type StorageConfig struct {
	Driver string       `yaml:"driver"` // badger, redis, memory
	Badger BadgerConfig `yaml:"badger"`
	Redis  RedisConfig  `yaml:"redis"`
}

// BadgerConfig holds configuration for the embedded badger store.
type BadgerConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig holds configuration for the redis store.
type RedisConfig struct {
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	UseCluster bool     `yaml:"useCluster"`
	Namespace  string   `yaml:"namespace"`
}

// EngineConfig holds the balance engine tuning and product constants.
type EngineConfig struct {
	SaveDebounceMillis      int64             `yaml:"saveDebounceMillis"`
	RecomputeIntervalMillis int64             `yaml:"recomputeIntervalMillis"`
	RestoreConcurrency      int               `yaml:"restoreConcurrency"`
	NoCostThresholdUSD      float64           `yaml:"noCostThresholdUsd"`
	TinyTransferMaxCostUSD  float64           `yaml:"tinyTransferMaxCostUsd"`
	StakedSlugs             []string          `yaml:"stakedSlugs"`
	StakedAliases           map[string]string `yaml:"stakedAliases"` // staked slug -> slug pricing it
	CountedElsewhereSlugs   []string          `yaml:"countedElsewhereSlugs"`
	DefaultSlugs            []string          `yaml:"defaultSlugs"`
	SubscriberBuffer        int               `yaml:"subscriberBuffer"`
}

// TokenRegistryConfig holds configuration for the token metadata registry.
type TokenRegistryConfig struct {
	TokensFile      string             `yaml:"tokensFile"`
	PriceTTLMinutes int                `yaml:"priceTTLMinutes"`
	BaseCurrency    string             `yaml:"baseCurrency"`
	CurrencyRates   map[string]float64 `yaml:"currencyRates"` // units of currency per 1 USD
}

// AccountsConfig points at the account directory file.
type AccountsConfig struct {
	File string `yaml:"file"`
}

// WebhooksConfig lists endpoints receiving balance changed notifications.
type WebhooksConfig struct {
	URLs                 []string `yaml:"urls"`
	RequestTimeoutMillis int64    `yaml:"requestTimeoutMillis"`
}

// RateLimitConfig limits event ingestion over HTTP.
type RateLimitConfig struct {
	EventsPerSecond float64 `yaml:"eventsPerSecond"`
	Burst           int     `yaml:"burst"`
}

// SaveDebounce returns the persistence debounce period.
func (c EngineConfig) SaveDebounce() time.Duration {
	return time.Duration(c.SaveDebounceMillis) * time.Millisecond
}

// RecomputeInterval returns the recompute coalescing window.
func (c EngineConfig) RecomputeInterval() time.Duration {
	return time.Duration(c.RecomputeIntervalMillis) * time.Millisecond
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "badger"
		logrus.Infof("Storage.Driver not set, defaulting to %s", cfg.Storage.Driver)
	}
	if cfg.Storage.Badger.Dir == "" {
		cfg.Storage.Badger.Dir = "data/badger"
	}
	if cfg.Storage.Redis.Namespace == "" {
		cfg.Storage.Redis.Namespace = "balance_engine"
	}

	e := &cfg.Engine
	if e.SaveDebounceMillis == 0 {
		e.SaveDebounceMillis = 1000
	}
	if e.RecomputeIntervalMillis == 0 {
		e.RecomputeIntervalMillis = 100
	}
	if e.RestoreConcurrency <= 0 {
		e.RestoreConcurrency = 8
	}
	if e.NoCostThresholdUSD == 0 {
		e.NoCostThresholdUSD = 0.01
	}
	if e.TinyTransferMaxCostUSD == 0 {
		e.TinyTransferMaxCostUSD = 0.01
	}
	if len(e.StakedSlugs) == 0 {
		e.StakedSlugs = []string{"ton-staked", "mycoin-staked"}
		logrus.Infof("Engine.StakedSlugs not set, defaulting to %v", e.StakedSlugs)
	}
	if e.StakedAliases == nil {
		e.StakedAliases = map[string]string{"ton-staked": "toncoin", "mycoin-staked": "mycoin"}
	}
	if e.CountedElsewhereSlugs == nil {
		e.CountedElsewhereSlugs = []string{"ton-tsusde"}
	}
	if e.DefaultSlugs == nil {
		e.DefaultSlugs = []string{"toncoin", "ton-usdt", "trx", "tron-usdt"}
	}
	if e.SubscriberBuffer <= 0 {
		e.SubscriberBuffer = 64
	}

	if cfg.TokenRegistry.PriceTTLMinutes == 0 {
		cfg.TokenRegistry.PriceTTLMinutes = 60
	}
	if cfg.TokenRegistry.BaseCurrency == "" {
		cfg.TokenRegistry.BaseCurrency = "USD"
	}
	if cfg.Webhooks.RequestTimeoutMillis == 0 {
		cfg.Webhooks.RequestTimeoutMillis = 5000
	}
	if cfg.RateLimit.EventsPerSecond == 0 {
		cfg.RateLimit.EventsPerSecond = 200
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 400
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "badger", "memory":
	case "redis":
		if len(c.Storage.Redis.Addrs) == 0 {
			return fmt.Errorf("storage.redis.addrs is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Engine.NoCostThresholdUSD < 0 || c.Engine.TinyTransferMaxCostUSD < 0 {
		logrus.Warnf("Negative USD thresholds configured (noCost=%v, tinyTransfer=%v)",
			c.Engine.NoCostThresholdUSD, c.Engine.TinyTransferMaxCostUSD)
	}
	return nil
}
