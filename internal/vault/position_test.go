package vault

import (
	"testing"
	"time"

	"pm-vault-bot/internal/market"
)

const priceScale = 1_000_000

func openTestPosition(t *testing.T, v *Vault) *Position {
	t.Helper()
	p, err := v.OpenPosition(OpenParams{
		MarketID:       "m1",
		Side:           market.Yes,
		Shares:         100_000_000,
		EntryPrice:     500_000,
		InvestedAmount: 50_000_000,
		MaxPositions:   100,
		Now:            time.Now(),
	})
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return p
}

func TestOpenPosition(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)
	if p.Status != StatusOpen {
		t.Fatalf("expected open status, got %s", p.Status)
	}
	if p.ID == "" {
		t.Fatalf("expected generated position id")
	}
	if v.AvailableBalance != 50_000_000 {
		t.Fatalf("expected balance debited, got %d", v.AvailableBalance)
	}
	if v.ActivePositions != 1 || v.TotalVolume != 50_000_000 {
		t.Fatalf("unexpected vault state %d/%d", v.ActivePositions, v.TotalVolume)
	}
}

func TestOpenPositionValidation(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	base := OpenParams{
		MarketID: "m1", Side: market.Yes, Shares: 1, EntryPrice: 1,
		InvestedAmount: 1, MaxPositions: 100, Now: time.Now(),
	}

	p := base
	p.Shares = 0
	if _, err := v.OpenPosition(p); err != ErrInvalidPosition {
		t.Fatalf("expected invalid position for zero shares, got %v", err)
	}
	p = base
	p.EntryPrice = 0
	if _, err := v.OpenPosition(p); err != ErrInvalidPosition {
		t.Fatalf("expected invalid position for zero entry, got %v", err)
	}
	p = base
	p.InvestedAmount = 0
	if _, err := v.OpenPosition(p); err != ErrInvalidPosition {
		t.Fatalf("expected invalid position for zero invested, got %v", err)
	}
	p = base
	p.InvestedAmount = 200_000_000
	if _, err := v.OpenPosition(p); err != ErrInsufficientBalance {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	p = base
	p.MaxPositions = 0
	if _, err := v.OpenPosition(p); err != ErrTooManyPositions {
		t.Fatalf("expected position limit error, got %v", err)
	}
	if v.AvailableBalance != 100_000_000 || v.ActivePositions != 0 {
		t.Fatalf("rejected opens mutated vault: %d/%d", v.AvailableBalance, v.ActivePositions)
	}
}

func TestCloseProfit(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)

	pnl, err := p.Close(v, 700_000, priceScale, time.Now())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if pnl != 20_000_000 {
		t.Fatalf("expected pnl 20000000, got %d", pnl)
	}
	if p.Status != StatusClosed || p.ExitPrice != 700_000 || p.RealizedPnL != 20_000_000 {
		t.Fatalf("unexpected position state %s/%d/%d", p.Status, p.ExitPrice, p.RealizedPnL)
	}
	// 50m remaining + 70m exit value.
	if v.AvailableBalance != 120_000_000 {
		t.Fatalf("expected credited balance 120000000, got %d", v.AvailableBalance)
	}
	if v.ActivePositions != 0 {
		t.Fatalf("expected active positions 0, got %d", v.ActivePositions)
	}
}

func TestCloseLoss(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)

	pnl, err := p.Close(v, 300_000, priceScale, time.Now())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if pnl != -20_000_000 {
		t.Fatalf("expected pnl -20000000, got %d", pnl)
	}
	if v.AvailableBalance != 80_000_000 {
		t.Fatalf("expected credited balance 80000000, got %d", v.AvailableBalance)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)
	if _, err := p.Close(v, 700_000, priceScale, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	before := *p
	vaultBefore := *v
	if _, err := p.Close(v, 300_000, priceScale, time.Now()); err != ErrPositionNotOpen {
		t.Fatalf("expected not-open error, got %v", err)
	}
	if err := p.Liquidate(v, time.Now()); err != ErrPositionNotOpen {
		t.Fatalf("expected not-open error, got %v", err)
	}
	if *p != before || *v != vaultBefore {
		t.Fatalf("rejected transitions mutated state")
	}
}

func TestCloseRejectsZeroExitPrice(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)
	if _, err := p.Close(v, 0, priceScale, time.Now()); err != ErrInvalidExitPrice {
		t.Fatalf("expected invalid exit price, got %v", err)
	}
	if p.Status != StatusOpen {
		t.Fatalf("rejected close changed status to %s", p.Status)
	}
}

func TestLiquidate(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)
	if err := p.Liquidate(v, time.Now()); err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if p.Status != StatusLiquidated {
		t.Fatalf("expected liquidated status, got %s", p.Status)
	}
	// No credit back to the vault.
	if v.AvailableBalance != 50_000_000 {
		t.Fatalf("liquidation credited balance: %d", v.AvailableBalance)
	}
	if v.ActivePositions != 0 {
		t.Fatalf("expected active positions 0, got %d", v.ActivePositions)
	}
	if p.RealizedPnL != -50_000_000 {
		t.Fatalf("expected full loss recorded, got %d", p.RealizedPnL)
	}
}

func TestUnrealizedPnL(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)

	before := *p
	first := p.UnrealizedPnL(700_000, priceScale)
	second := p.UnrealizedPnL(700_000, priceScale)
	if first != 20_000_000 || second != first {
		t.Fatalf("expected stable pnl 20000000, got %d then %d", first, second)
	}
	if *p != before {
		t.Fatalf("pnl query mutated position")
	}
	if got := p.UnrealizedPnL(300_000, priceScale); got != -20_000_000 {
		t.Fatalf("expected pnl -20000000, got %d", got)
	}
}

func TestUnrealizedPnLOnClosedReturnsRealized(t *testing.T) {
	v := NewVault("v1", time.Now())
	v.AvailableBalance = 100_000_000
	p := openTestPosition(t, v)
	if _, err := p.Close(v, 700_000, priceScale, time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, price := range []uint64{1, 300_000, 999_999} {
		if got := p.UnrealizedPnL(price, priceScale); got != 20_000_000 {
			t.Fatalf("expected stored pnl at price %d, got %d", price, got)
		}
	}
}
