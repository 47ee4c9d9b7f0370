package vault

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"pm-vault-bot/internal/market"
)

type Status uint8

const (
	StatusOpen Status = iota
	StatusClosed
	StatusLiquidated
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusLiquidated:
		return "liquidated"
	default:
		return "unknown"
	}
}

var (
	ErrPositionNotOpen  = errors.New("position is not open")
	ErrInvalidPosition  = errors.New("position parameters invalid")
	ErrInvalidExitPrice = errors.New("exit price must be positive")
	ErrTooManyPositions = errors.New("active position limit reached")
)

// Position records one opened trade. It mutates once, at close or
// liquidation, and is immutable afterwards.
type Position struct {
	ID             string
	VaultID        string
	MarketID       string
	Side           market.Side
	Shares         uint64
	EntryPrice     uint64
	InvestedAmount uint64
	Status         Status
	OpenedAt       time.Time
	ClosedAt       time.Time
	ExitPrice      uint64
	RealizedPnL    int64
}

type OpenParams struct {
	MarketID       string
	Side           market.Side
	Shares         uint64
	EntryPrice     uint64
	InvestedAmount uint64
	MaxPositions   uint32
	Now            time.Time
}

// OpenPosition debits the vault and records a new open position. The
// debit, position count, and volume update happen together or not at all.
func (v *Vault) OpenPosition(p OpenParams) (*Position, error) {
	if p.Shares == 0 || p.InvestedAmount == 0 || p.EntryPrice == 0 {
		return nil, ErrInvalidPosition
	}
	if v.ActivePositions >= p.MaxPositions {
		return nil, ErrTooManyPositions
	}
	if v.AvailableBalance < p.InvestedAmount {
		return nil, ErrInsufficientBalance
	}
	v.AvailableBalance -= p.InvestedAmount
	v.ActivePositions++
	v.TotalVolume = saturatingAdd(v.TotalVolume, p.InvestedAmount)
	return &Position{
		ID:             uuid.NewString(),
		VaultID:        v.ID,
		MarketID:       p.MarketID,
		Side:           p.Side,
		Shares:         p.Shares,
		EntryPrice:     p.EntryPrice,
		InvestedAmount: p.InvestedAmount,
		Status:         StatusOpen,
		OpenedAt:       p.Now,
	}, nil
}

// Close settles an open position at the given price, credits the exit
// value back to the vault, and returns the realized PnL. Terminal.
func (p *Position) Close(v *Vault, exitPrice, priceScale uint64, now time.Time) (int64, error) {
	if p.Status != StatusOpen {
		return 0, ErrPositionNotOpen
	}
	if exitPrice == 0 {
		return 0, ErrInvalidExitPrice
	}
	exitValue := scaleValue(p.Shares, exitPrice, priceScale)
	if err := v.CreditFromClose(exitValue); err != nil {
		return 0, err
	}
	if v.ActivePositions > 0 {
		v.ActivePositions--
	}
	p.Status = StatusClosed
	p.ClosedAt = now
	p.ExitPrice = exitPrice
	p.RealizedPnL = signedSub(exitValue, p.InvestedAmount)
	return p.RealizedPnL, nil
}

// Liquidate marks an open position liquidated. Nothing is returned to
// the vault. Terminal.
func (p *Position) Liquidate(v *Vault, now time.Time) error {
	if p.Status != StatusOpen {
		return ErrPositionNotOpen
	}
	if v.ActivePositions > 0 {
		v.ActivePositions--
	}
	p.Status = StatusLiquidated
	p.ClosedAt = now
	p.RealizedPnL = signedSub(0, p.InvestedAmount)
	return nil
}

// UnrealizedPnL marks the position to the given price without mutating
// it. Settled positions report their stored realized PnL regardless of
// the price argument.
func (p *Position) UnrealizedPnL(currentPrice, priceScale uint64) int64 {
	if p.Status != StatusOpen {
		return p.RealizedPnL
	}
	value := scaleValue(p.Shares, currentPrice, priceScale)
	return signedSub(value, p.InvestedAmount)
}

// scaleValue is shares*price/scale with a wide intermediate.
func scaleValue(shares, price, priceScale uint64) uint64 {
	if priceScale == 0 {
		return 0
	}
	v := new(uint256.Int).Mul(uint256.NewInt(shares), uint256.NewInt(price))
	v.Div(v, uint256.NewInt(priceScale))
	return v.Uint64()
}
