package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	State    StateConfig    `yaml:"state"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
	Market   MarketConfig   `yaml:"market"`
	Strategy StrategyConfig `yaml:"strategy"`
	Vault    VaultConfig    `yaml:"vault"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	QueueSize int    `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// MarketConfig holds the AMM simulator parameters. All amounts are in
// base units on the fixed-point price scale.
type MarketConfig struct {
	MarketID         string        `yaml:"market_id"`
	PriceScale       uint64        `yaml:"price_scale"`
	FeeBps           uint64        `yaml:"fee_bps"`
	InitialLiquidity uint64        `yaml:"initial_liquidity"`
	MinTradeAmount   uint64        `yaml:"min_trade_amount"`
	MaxTradeAmount   uint64        `yaml:"max_trade_amount"`
	MaxSlippageBps   uint64        `yaml:"max_slippage_bps"`
	Duration         time.Duration `yaml:"duration"`
}

type StrategyConfig struct {
	BuyThreshold        uint64        `yaml:"buy_threshold"`
	SellThreshold       uint64        `yaml:"sell_threshold"`
	VolatilityThreshold uint64        `yaml:"volatility_threshold"`
	TrendThreshold      uint64        `yaml:"trend_threshold"`
	CycleInterval       time.Duration `yaml:"cycle_interval"`
	ObservationWindow   int           `yaml:"observation_window"`
}

type VaultConfig struct {
	VaultID            string `yaml:"vault_id"`
	InitialDeposit     uint64 `yaml:"initial_deposit"`
	MinDeposit         uint64 `yaml:"min_deposit"`
	MaxDeposit         uint64 `yaml:"max_deposit"`
	MaxActivePositions uint32 `yaml:"max_active_positions"`
	MaxRiskScore       uint8  `yaml:"max_risk_score"`
	MaxAttestationAge  uint64 `yaml:"max_attestation_age"`
	ComplianceOracle   string `yaml:"compliance_oracle"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/pm-vault-bot.db"
	}
	if cfg.Audit.QueueSize == 0 {
		cfg.Audit.QueueSize = 1024
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}
	if cfg.Market.MarketID == "" {
		cfg.Market.MarketID = "default"
	}
	if cfg.Market.PriceScale == 0 {
		cfg.Market.PriceScale = 1_000_000
	}
	if cfg.Market.FeeBps == 0 {
		cfg.Market.FeeBps = 30
	}
	if cfg.Market.InitialLiquidity == 0 {
		cfg.Market.InitialLiquidity = 2_000_000_000
	}
	if cfg.Market.MinTradeAmount == 0 {
		cfg.Market.MinTradeAmount = 1_000_000
	}
	if cfg.Market.MaxTradeAmount == 0 {
		cfg.Market.MaxTradeAmount = 1_000_000_000_000
	}
	if cfg.Market.MaxSlippageBps == 0 {
		cfg.Market.MaxSlippageBps = 500
	}
	if cfg.Market.Duration == 0 {
		cfg.Market.Duration = 30 * 24 * time.Hour
	}
	if cfg.Strategy.BuyThreshold == 0 {
		cfg.Strategy.BuyThreshold = 400_000
	}
	if cfg.Strategy.SellThreshold == 0 {
		cfg.Strategy.SellThreshold = 600_000
	}
	if cfg.Strategy.VolatilityThreshold == 0 {
		cfg.Strategy.VolatilityThreshold = 200_000
	}
	if cfg.Strategy.TrendThreshold == 0 {
		cfg.Strategy.TrendThreshold = 100_000
	}
	if cfg.Strategy.CycleInterval == 0 {
		cfg.Strategy.CycleInterval = 30 * time.Second
	}
	if cfg.Strategy.ObservationWindow == 0 {
		cfg.Strategy.ObservationWindow = 24
	}
	if cfg.Vault.VaultID == "" {
		cfg.Vault.VaultID = "default"
	}
	if cfg.Vault.InitialDeposit == 0 {
		cfg.Vault.InitialDeposit = 1_000_000_000
	}
	if cfg.Vault.MinDeposit == 0 {
		cfg.Vault.MinDeposit = 1_000_000
	}
	if cfg.Vault.MaxDeposit == 0 {
		cfg.Vault.MaxDeposit = 1_000_000_000_000
	}
	if cfg.Vault.MaxActivePositions == 0 {
		cfg.Vault.MaxActivePositions = 100
	}
	if cfg.Vault.MaxRiskScore == 0 {
		cfg.Vault.MaxRiskScore = 30
	}
	if cfg.Vault.MaxAttestationAge == 0 {
		cfg.Vault.MaxAttestationAge = 50
	}
}

func validate(cfg *Config) error {
	if cfg.Strategy.BuyThreshold >= cfg.Strategy.SellThreshold {
		return errors.New("strategy.buy_threshold must be below strategy.sell_threshold")
	}
	if cfg.Strategy.SellThreshold > cfg.Market.PriceScale {
		return errors.New("strategy.sell_threshold exceeds market.price_scale")
	}
	if cfg.Market.MinTradeAmount > cfg.Market.MaxTradeAmount {
		return errors.New("market.min_trade_amount exceeds market.max_trade_amount")
	}
	if cfg.Market.MaxSlippageBps > 10_000 {
		return errors.New("market.max_slippage_bps must be at most 10000")
	}
	if cfg.Vault.MinDeposit > cfg.Vault.MaxDeposit {
		return errors.New("vault.min_deposit exceeds vault.max_deposit")
	}
	if cfg.Vault.MaxRiskScore > 100 {
		return errors.New("vault.max_risk_score must be at most 100")
	}
	if cfg.Audit.Enabled && cfg.Audit.DSN == "" {
		return errors.New("audit.dsn is required when audit is enabled")
	}
	return nil
}
