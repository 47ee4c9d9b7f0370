package state

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pm-vault-bot/internal/market"
	"pm-vault-bot/internal/signal"
	"pm-vault-bot/internal/vault"
)

func VaultKey(id string) string { return "vault:" + id }

func StrategyKey(vaultID string) string { return "strategy:" + vaultID }

func MarketKey(id string) string { return "market:" + id }

func PositionKey(vaultID, marketID string) string {
	return "position:" + vaultID + ":" + marketID
}

type VaultRecord struct {
	ID               string `json:"id"`
	TotalDeposited   uint64 `json:"total_deposited"`
	AvailableBalance uint64 `json:"available_balance"`
	ActivePositions  uint32 `json:"active_positions"`
	TotalVolume      uint64 `json:"total_volume"`
	LastTradeSlot    uint64 `json:"last_trade_slot"`
	DepositCount     uint64 `json:"deposit_count"`
	WithdrawalCount  uint64 `json:"withdrawal_count"`
	Active           bool   `json:"active"`
	CreatedAtMS      int64  `json:"created_at_ms"`
}

func FromVault(v *vault.Vault) VaultRecord {
	return VaultRecord{
		ID:               v.ID,
		TotalDeposited:   v.TotalDeposited,
		AvailableBalance: v.AvailableBalance,
		ActivePositions:  v.ActivePositions,
		TotalVolume:      v.TotalVolume,
		LastTradeSlot:    v.LastTradeSlot,
		DepositCount:     v.DepositCount,
		WithdrawalCount:  v.WithdrawalCount,
		Active:           v.Active,
		CreatedAtMS:      toMillis(v.CreatedAt),
	}
}

func (r VaultRecord) ToVault() *vault.Vault {
	return &vault.Vault{
		ID:               r.ID,
		TotalDeposited:   r.TotalDeposited,
		AvailableBalance: r.AvailableBalance,
		ActivePositions:  r.ActivePositions,
		TotalVolume:      r.TotalVolume,
		LastTradeSlot:    r.LastTradeSlot,
		DepositCount:     r.DepositCount,
		WithdrawalCount:  r.WithdrawalCount,
		Active:           r.Active,
		CreatedAt:        fromMillis(r.CreatedAtMS),
	}
}

type StrategyRecord struct {
	VaultID             string `json:"vault_id"`
	BuyThreshold        uint64 `json:"buy_threshold"`
	SellThreshold       uint64 `json:"sell_threshold"`
	TrendThreshold      uint64 `json:"trend_threshold"`
	VolatilityThreshold uint64 `json:"volatility_threshold"`
	Active              bool   `json:"active"`
	LastSignal          uint8  `json:"last_signal"`
	LastSignalAtMS      int64  `json:"last_signal_at_ms"`
	TotalSignals        uint64 `json:"total_signals"`
	UpdatedAtMS         int64  `json:"updated_at_ms"`
}

func FromStrategy(c *vault.StrategyConfig) StrategyRecord {
	return StrategyRecord{
		VaultID:             c.VaultID,
		BuyThreshold:        c.Params.BuyThreshold,
		SellThreshold:       c.Params.SellThreshold,
		TrendThreshold:      c.Params.TrendThreshold,
		VolatilityThreshold: c.Params.VolatilityThreshold,
		Active:              c.Active,
		LastSignal:          uint8(c.LastSignal),
		LastSignalAtMS:      toMillis(c.LastSignalAt),
		TotalSignals:        c.TotalSignals,
		UpdatedAtMS:         toMillis(c.UpdatedAt),
	}
}

func (r StrategyRecord) ToStrategy() *vault.StrategyConfig {
	return &vault.StrategyConfig{
		VaultID: r.VaultID,
		Params: signal.Params{
			BuyThreshold:        r.BuyThreshold,
			SellThreshold:       r.SellThreshold,
			TrendThreshold:      r.TrendThreshold,
			VolatilityThreshold: r.VolatilityThreshold,
		},
		Active:       r.Active,
		LastSignal:   signal.TradeSignal(r.LastSignal),
		LastSignalAt: fromMillis(r.LastSignalAtMS),
		TotalSignals: r.TotalSignals,
		UpdatedAt:    fromMillis(r.UpdatedAtMS),
	}
}

type PositionRecord struct {
	ID             string `json:"id"`
	VaultID        string `json:"vault_id"`
	MarketID       string `json:"market_id"`
	Side           uint8  `json:"side"`
	Shares         uint64 `json:"shares"`
	EntryPrice     uint64 `json:"entry_price"`
	InvestedAmount uint64 `json:"invested_amount"`
	Status         uint8  `json:"status"`
	OpenedAtMS     int64  `json:"opened_at_ms"`
	ClosedAtMS     int64  `json:"closed_at_ms"`
	ExitPrice      uint64 `json:"exit_price"`
	RealizedPnL    int64  `json:"realized_pnl"`
}

func FromPosition(p *vault.Position) PositionRecord {
	return PositionRecord{
		ID:             p.ID,
		VaultID:        p.VaultID,
		MarketID:       p.MarketID,
		Side:           uint8(p.Side),
		Shares:         p.Shares,
		EntryPrice:     p.EntryPrice,
		InvestedAmount: p.InvestedAmount,
		Status:         uint8(p.Status),
		OpenedAtMS:     toMillis(p.OpenedAt),
		ClosedAtMS:     toMillis(p.ClosedAt),
		ExitPrice:      p.ExitPrice,
		RealizedPnL:    p.RealizedPnL,
	}
}

func (r PositionRecord) ToPosition() *vault.Position {
	return &vault.Position{
		ID:             r.ID,
		VaultID:        r.VaultID,
		MarketID:       r.MarketID,
		Side:           market.Side(r.Side),
		Shares:         r.Shares,
		EntryPrice:     r.EntryPrice,
		InvestedAmount: r.InvestedAmount,
		Status:         vault.Status(r.Status),
		OpenedAt:       fromMillis(r.OpenedAtMS),
		ClosedAt:       fromMillis(r.ClosedAtMS),
		ExitPrice:      r.ExitPrice,
		RealizedPnL:    r.RealizedPnL,
	}
}

type MarketRecord struct {
	ID           string `json:"id"`
	YesReserve   uint64 `json:"yes_reserve"`
	NoReserve    uint64 `json:"no_reserve"`
	SolLiquidity uint64 `json:"sol_liquidity"`
	TotalVolume  uint64 `json:"total_volume"`
	EndTimeMS    int64  `json:"end_time_ms"`
	FeeBps       uint64 `json:"fee_bps"`
	PriceScale   uint64 `json:"price_scale"`
	Resolved     bool   `json:"resolved"`
	WinningSide  uint8  `json:"winning_side"`
}

func FromMarket(m *market.Market) MarketRecord {
	return MarketRecord{
		ID:           m.ID,
		YesReserve:   m.YesReserve,
		NoReserve:    m.NoReserve,
		SolLiquidity: m.SolLiquidity,
		TotalVolume:  m.TotalVolume,
		EndTimeMS:    toMillis(m.EndTime),
		FeeBps:       m.FeeBps,
		PriceScale:   m.PriceScale,
		Resolved:     m.Resolved,
		WinningSide:  uint8(m.WinningSide),
	}
}

func (r MarketRecord) ToMarket() *market.Market {
	return &market.Market{
		ID:           r.ID,
		YesReserve:   r.YesReserve,
		NoReserve:    r.NoReserve,
		SolLiquidity: r.SolLiquidity,
		TotalVolume:  r.TotalVolume,
		EndTime:      fromMillis(r.EndTimeMS),
		FeeBps:       r.FeeBps,
		PriceScale:   r.PriceScale,
		Resolved:     r.Resolved,
		WinningSide:  market.Side(r.WinningSide),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Load fetches and decodes a JSON record. A nil store or missing key
// reports not-found without error.
func Load[T any](ctx context.Context, store Store, key string) (T, bool, error) {
	var zero T
	if store == nil {
		return zero, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return zero, false, nil
	}
	var record T
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return zero, false, err
	}
	return record, true, nil
}

// Save encodes and stores a JSON record. A nil store is a no-op.
func Save[T any](ctx context.Context, store Store, key string, record T) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload))
}
