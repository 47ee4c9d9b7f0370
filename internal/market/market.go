package market

import (
	"errors"
	"time"

	"github.com/holiman/uint256"
)

// Side selects one of the two outcome pools.
type Side uint8

const (
	Yes Side = iota
	No
)

func (s Side) String() string {
	if s == Yes {
		return "yes"
	}
	return "no"
}

func (s Side) Opposite() Side {
	if s == Yes {
		return No
	}
	return Yes
}

type OrderType uint8

const (
	OrderMarket OrderType = iota
	OrderLimit
)

var (
	ErrResolved         = errors.New("market already resolved")
	ErrAmountTooSmall   = errors.New("order amount below minimum")
	ErrAmountTooLarge   = errors.New("order amount above maximum")
	ErrInvalidLimit     = errors.New("limit price out of range")
	ErrInvalidSlippage  = errors.New("slippage tolerance above 100%")
	ErrNoShares         = errors.New("trade yields zero shares")
	ErrLimitExceeded    = errors.New("execution price above limit")
	ErrInvalidLiquidity = errors.New("initial liquidity must be positive")
)

// Limits carries the order validation bounds. They come from config so tests
// can exercise alternate scales without touching package state.
type Limits struct {
	MinTradeAmount uint64
	MaxTradeAmount uint64
}

type Order struct {
	Side           Side
	Amount         uint64
	Type           OrderType
	LimitPrice     uint64
	MaxSlippageBps uint64
}

type Outcome struct {
	Success        bool
	AmountTraded   uint64
	SharesReceived uint64
	ExecutionPrice uint64
	FeesPaid       uint64
}

// Market is a two-sided constant-product pool. Prices are fixed-point
// fractions of PriceScale; the two side prices always sum to the scale.
type Market struct {
	ID           string
	YesReserve   uint64
	NoReserve    uint64
	SolLiquidity uint64
	TotalVolume  uint64
	EndTime      time.Time
	FeeBps       uint64
	PriceScale   uint64
	Resolved     bool
	WinningSide  Side
}

// New creates a market with the liquidity split evenly between sides.
func New(id string, liquidity, feeBps, priceScale uint64, endTime time.Time) (*Market, error) {
	if liquidity == 0 {
		return nil, ErrInvalidLiquidity
	}
	half := liquidity / 2
	return &Market{
		ID:           id,
		YesReserve:   half,
		NoReserve:    half,
		SolLiquidity: liquidity,
		EndTime:      endTime,
		FeeBps:       feeBps,
		PriceScale:   priceScale,
	}, nil
}

// Price returns the fixed-point price of a side: the opposite reserve over
// the reserve sum, truncating. An empty pool prices both sides at half scale.
func (m *Market) Price(side Side) uint64 {
	if m.YesReserve == 0 && m.NoReserve == 0 {
		return m.PriceScale / 2
	}
	if side == Yes {
		total := new(uint256.Int).Add(uint256.NewInt(m.YesReserve), uint256.NewInt(m.NoReserve))
		p := new(uint256.Int).Mul(uint256.NewInt(m.NoReserve), uint256.NewInt(m.PriceScale))
		p.Div(p, total)
		return p.Uint64()
	}
	return m.PriceScale - m.Price(Yes)
}

// Execute runs a trade against the pool. Rejected orders leave the market
// untouched; the returned error identifies the first failed check.
func (m *Market) Execute(order Order, limits Limits) (Outcome, error) {
	if m.Resolved {
		return Outcome{}, ErrResolved
	}
	if err := validateOrder(order, limits, m.PriceScale); err != nil {
		return Outcome{}, err
	}

	fee := order.Amount * m.FeeBps / 10_000
	amountAfterFee := order.Amount - fee

	reserveIn, reserveOut := m.YesReserve, m.NoReserve
	if order.Side == Yes {
		reserveIn, reserveOut = m.NoReserve, m.YesReserve
	}

	k := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(reserveOut))
	newReserveIn := reserveIn + amountAfterFee
	newReserveOut := new(uint256.Int).Div(k, uint256.NewInt(newReserveIn)).Uint64()

	var shares uint64
	if reserveOut > newReserveOut {
		shares = reserveOut - newReserveOut
	}
	if shares == 0 {
		return Outcome{}, ErrNoShares
	}

	execPrice := new(uint256.Int).Mul(uint256.NewInt(order.Amount), uint256.NewInt(m.PriceScale))
	execPrice.Div(execPrice, uint256.NewInt(shares))
	executionPrice := execPrice.Uint64()

	if order.Type == OrderLimit && executionPrice > order.LimitPrice {
		return Outcome{}, ErrLimitExceeded
	}

	if order.Side == Yes {
		m.NoReserve = newReserveIn
		m.YesReserve = reserveOut - shares
	} else {
		m.YesReserve = newReserveIn
		m.NoReserve = reserveOut - shares
	}
	m.TotalVolume = saturatingAdd(m.TotalVolume, order.Amount)

	return Outcome{
		Success:        true,
		AmountTraded:   order.Amount,
		SharesReceived: shares,
		ExecutionPrice: executionPrice,
		FeesPaid:       fee,
	}, nil
}

func validateOrder(order Order, limits Limits, priceScale uint64) error {
	if order.Amount < limits.MinTradeAmount {
		return ErrAmountTooSmall
	}
	if order.Amount > limits.MaxTradeAmount {
		return ErrAmountTooLarge
	}
	switch order.Type {
	case OrderLimit:
		if order.LimitPrice == 0 || order.LimitPrice > priceScale {
			return ErrInvalidLimit
		}
	default:
		if order.MaxSlippageBps > 10_000 {
			return ErrInvalidSlippage
		}
	}
	return nil
}

// Resolve settles the market on a winning side. One-way.
func (m *Market) Resolve(winner Side) error {
	if m.Resolved {
		return ErrResolved
	}
	m.Resolved = true
	m.WinningSide = winner
	return nil
}

// Payout is the binary settlement value of a share lot: full face value on
// the winning side, zero otherwise. Unresolved markets pay nothing.
func (m *Market) Payout(side Side, shares uint64) uint64 {
	if !m.Resolved || side != m.WinningSide {
		return 0
	}
	return shares
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
