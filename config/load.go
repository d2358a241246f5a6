package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ladder-trader-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env      string           `yaml:"env"`
	Gateway  GatewayConfig    `yaml:"gateway"`
	Redis    RedisConfig      `yaml:"redis"`
	Logger   logger.Config    `yaml:"logger"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Strategy StrategySettings `yaml:"strategy"`
}

// GatewayConfig 券商接入配置（Dhan REST + 行情 WS）。
type GatewayConfig struct {
	ClientID       string  `yaml:"clientId"`
	AccessToken    string  `yaml:"accessToken"`
	BaseURL        string  `yaml:"baseURL"`        // 默认 https://api.dhan.co
	ScripMasterURL string  `yaml:"scripMasterURL"` // 证券主档 CSV
	FeedURL        string  `yaml:"feedURL"`        // 行情 WS 端点
	RequestsPerSec float64 `yaml:"requestsPerSec"` // REST 限流：每秒令牌
	MaxConnections int     `yaml:"maxConnections"` // 并发连接槽位
	MaxReconnects  int     `yaml:"maxReconnects"`  // WS 重连上限
	ReconnectBase  int     `yaml:"reconnectBase"`  // WS 重连基础延迟（秒）
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // Prometheus 监听地址，留空关闭
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	cfg.Strategy = cfg.Strategy.Normalize()
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("DHAN_CLIENT_ID"); v != "" {
		cfg.Gateway.ClientID = v
	}
	if v := os.Getenv("DHAN_ACCESS_TOKEN"); v != "" {
		cfg.Gateway.AccessToken = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	return cfg, Validate(cfg)
}

func (c *AppConfig) applyDefaults() {
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://api.dhan.co"
	}
	if c.Gateway.ScripMasterURL == "" {
		c.Gateway.ScripMasterURL = "https://images.dhan.co/api-data/api-scrip-master.csv"
	}
	if c.Gateway.FeedURL == "" {
		c.Gateway.FeedURL = "wss://api-feed.dhan.co"
	}
	if c.Gateway.RequestsPerSec <= 0 {
		c.Gateway.RequestsPerSec = 1.0
	}
	if c.Gateway.MaxConnections <= 0 {
		c.Gateway.MaxConnections = 5
	}
	if c.Gateway.MaxReconnects <= 0 {
		c.Gateway.MaxReconnects = 10
	}
	if c.Gateway.ReconnectBase <= 0 {
		c.Gateway.ReconnectBase = 5
	}
	if c.Logger.Level == "" {
		c.Logger = logger.DefaultConfig()
	}
	if c.Strategy == (StrategySettings{}) {
		c.Strategy = DefaultSettings()
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Gateway.RequestsPerSec <= 0 {
		return errors.New("gateway.requestsPerSec must be > 0")
	}
	if cfg.Strategy.TradeCapital <= 0 {
		return errors.New("strategy.tradeCapital must be > 0")
	}
	if cfg.Strategy.AddOnPct < 0 || cfg.Strategy.InitialStopLossPct < 0 ||
		cfg.Strategy.TrailingStopLossPct < 0 || cfg.Strategy.TargetPct < 0 {
		return errors.New("strategy percentages must be >= 0")
	}
	if cfg.Strategy.MinTurnoverCr < 0 {
		return errors.New("strategy.minTurnoverCr must be >= 0")
	}
	return nil
}

// ReconnectBaseDelay 返回重连基础延迟。
func (g GatewayConfig) ReconnectBaseDelay() time.Duration {
	return time.Duration(g.ReconnectBase) * time.Second
}
