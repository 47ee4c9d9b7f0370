package vault

import (
	"errors"
	"math"
	"time"
)

var (
	ErrOverflow            = errors.New("balance arithmetic overflow")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrVaultInactive       = errors.New("vault is inactive")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Vault is the per-authority cash ledger. TotalDeposited and
// AvailableBalance use checked arithmetic and fail closed on overflow;
// TotalVolume is best-effort accounting and saturates instead.
type Vault struct {
	ID               string
	TotalDeposited   uint64
	AvailableBalance uint64
	ActivePositions  uint32
	TotalVolume      uint64
	LastTradeSlot    uint64
	DepositCount     uint64
	WithdrawalCount  uint64
	Active           bool
	CreatedAt        time.Time
}

func NewVault(id string, now time.Time) *Vault {
	return &Vault{ID: id, Active: true, CreatedAt: now}
}

// ApplyDeposit credits verified funds. Both totals move together or not
// at all.
func (v *Vault) ApplyDeposit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	deposited, err := checkedAdd(v.TotalDeposited, amount)
	if err != nil {
		return err
	}
	available, err := checkedAdd(v.AvailableBalance, amount)
	if err != nil {
		return err
	}
	v.TotalDeposited = deposited
	v.AvailableBalance = available
	v.DepositCount++
	return nil
}

// ApplyWithdrawal debits a completed withdrawal from both totals.
func (v *Vault) ApplyWithdrawal(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if v.AvailableBalance < amount {
		return ErrInsufficientBalance
	}
	if v.TotalDeposited < amount {
		return ErrInsufficientBalance
	}
	v.AvailableBalance -= amount
	v.TotalDeposited -= amount
	v.WithdrawalCount++
	return nil
}

// PositionSize converts a signal grade into an order amount: 1/20th of
// the spendable balance, doubled for strong signals.
func (v *Vault) PositionSize(isStrong bool) uint64 {
	base := v.AvailableBalance / 20
	if isStrong {
		return saturatingAdd(base, base)
	}
	return base
}

// DebitForTrade spends balance on an executed trade and stamps the slot.
func (v *Vault) DebitForTrade(amount, slot uint64) error {
	if v.AvailableBalance < amount {
		return ErrInsufficientBalance
	}
	v.AvailableBalance -= amount
	v.TotalVolume = saturatingAdd(v.TotalVolume, amount)
	v.LastTradeSlot = slot
	return nil
}

// CreditFromClose returns a closed position's exit value to the balance.
func (v *Vault) CreditFromClose(amount uint64) error {
	available, err := checkedAdd(v.AvailableBalance, amount)
	if err != nil {
		return err
	}
	v.AvailableBalance = available
	return nil
}

func (v *Vault) Deactivate() { v.Active = false }

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}

// signedSub returns a-b as a signed value, clamping at the int64 range.
func signedSub(a, b uint64) int64 {
	if a >= b {
		diff := a - b
		if diff > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(diff)
	}
	diff := b - a
	if diff > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(diff)
}
