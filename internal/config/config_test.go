package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.Log.Level != "info" {
		t.Fatalf("expected log level default, got %q", cfg.Log.Level)
	}
	if cfg.Market.PriceScale != 1_000_000 {
		t.Fatalf("expected price scale default, got %d", cfg.Market.PriceScale)
	}
	if cfg.Market.FeeBps != 30 {
		t.Fatalf("expected fee bps default, got %d", cfg.Market.FeeBps)
	}
	if cfg.Strategy.BuyThreshold != 400_000 || cfg.Strategy.SellThreshold != 600_000 {
		t.Fatalf("expected threshold defaults, got %d/%d", cfg.Strategy.BuyThreshold, cfg.Strategy.SellThreshold)
	}
	if cfg.Strategy.CycleInterval <= 0 {
		t.Fatalf("expected cycle interval default, got %v", cfg.Strategy.CycleInterval)
	}
	if cfg.Strategy.ObservationWindow <= 0 {
		t.Fatalf("expected observation window default, got %d", cfg.Strategy.ObservationWindow)
	}
	if cfg.Strategy.VolatilityThreshold != 200_000 || cfg.Strategy.TrendThreshold != 100_000 {
		t.Fatalf("expected gate defaults, got %d/%d", cfg.Strategy.VolatilityThreshold, cfg.Strategy.TrendThreshold)
	}
	if cfg.Vault.MaxActivePositions == 0 {
		t.Fatalf("expected max active positions default")
	}
	if cfg.Vault.MaxAttestationAge != 50 {
		t.Fatalf("expected attestation age default, got %d", cfg.Vault.MaxAttestationAge)
	}
}

func TestDefaultsRespectExplicitValues(t *testing.T) {
	cfg := &Config{
		Market:   MarketConfig{FeeBps: 100},
		Strategy: StrategyConfig{BuyThreshold: 350_000},
	}
	applyDefaults(cfg)
	if cfg.Market.FeeBps != 100 {
		t.Fatalf("expected explicit fee bps preserved, got %d", cfg.Market.FeeBps)
	}
	if cfg.Strategy.BuyThreshold != 350_000 {
		t.Fatalf("expected explicit buy threshold preserved, got %d", cfg.Strategy.BuyThreshold)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{BuyThreshold: 700_000, SellThreshold: 600_000}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for buy threshold above sell threshold")
	}
}

func TestValidateRejectsSellThresholdAboveScale(t *testing.T) {
	cfg := &Config{Strategy: StrategyConfig{SellThreshold: 2_000_000}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for sell threshold above price scale")
	}
}

func TestValidateRejectsInvertedTradeBounds(t *testing.T) {
	cfg := &Config{Market: MarketConfig{MinTradeAmount: 100, MaxTradeAmount: 10}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for min trade amount above max")
	}
}

func TestValidateRejectsSlippageAboveFull(t *testing.T) {
	cfg := &Config{Market: MarketConfig{MaxSlippageBps: 10_001}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for slippage above 10000 bps")
	}
}

func TestValidateRejectsRiskScoreAboveHundred(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{MaxRiskScore: 101}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for risk score cap above 100")
	}
}

func TestValidateRequiresAuditDSNWhenEnabled(t *testing.T) {
	cfg := &Config{Audit: AuditConfig{Enabled: true}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for enabled audit without dsn")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}
