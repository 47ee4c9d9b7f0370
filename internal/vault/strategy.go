package vault

import (
	"math"
	"time"

	"pm-vault-bot/internal/signal"
)

// StrategyConfig is the per-vault signal policy plus its evaluation
// history. Counters bump on every evaluation, Hold included, so the
// audit trail covers every decision.
type StrategyConfig struct {
	VaultID      string
	Params       signal.Params
	Active       bool
	LastSignal   signal.TradeSignal
	LastSignalAt time.Time
	TotalSignals uint64
	UpdatedAt    time.Time
}

func NewStrategyConfig(vaultID string, params signal.Params, now time.Time) (*StrategyConfig, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &StrategyConfig{
		VaultID:   vaultID,
		Params:    params,
		Active:    true,
		UpdatedAt: now,
	}, nil
}

func (c *StrategyConfig) UpdateParams(params signal.Params, now time.Time) error {
	if err := params.Validate(); err != nil {
		return err
	}
	c.Params = params
	c.UpdatedAt = now
	return nil
}

func (c *StrategyConfig) RecordSignal(s signal.TradeSignal, now time.Time) {
	c.LastSignal = s
	c.LastSignalAt = now
	if c.TotalSignals < math.MaxUint64 {
		c.TotalSignals++
	}
}
