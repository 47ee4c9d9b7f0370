package signal

import "errors"

// TradeSignal is the five-way outcome of the threshold policy. Codes are
// stable and used in persisted records and audit rows.
type TradeSignal uint8

const (
	StrongBuy  TradeSignal = 1
	Buy        TradeSignal = 2
	Hold       TradeSignal = 3
	Sell       TradeSignal = 4
	StrongSell TradeSignal = 5
)

func (s TradeSignal) String() string {
	switch s {
	case StrongBuy:
		return "strong_buy"
	case Buy:
		return "buy"
	case Hold:
		return "hold"
	case Sell:
		return "sell"
	case StrongSell:
		return "strong_sell"
	default:
		return "unknown"
	}
}

func (s TradeSignal) Code() uint8 { return uint8(s) }

func (s TradeSignal) IsBuy() bool { return s == StrongBuy || s == Buy }

func (s TradeSignal) IsSell() bool { return s == StrongSell || s == Sell }

func (s TradeSignal) IsStrong() bool { return s == StrongBuy || s == StrongSell }

// MarketInput is an observation on the fixed-point price scale. Trend is
// signed (last close minus first close over the observation window).
type MarketInput struct {
	Price      uint64
	Trend      int64
	Volatility uint64
}

type Params struct {
	BuyThreshold        uint64
	SellThreshold       uint64
	VolatilityThreshold uint64
	TrendThreshold      uint64
}

var (
	ErrInvertedThresholds = errors.New("buy threshold must be below sell threshold")
	ErrZeroVolatilityCap  = errors.New("volatility threshold must be positive")
)

func (p Params) Validate() error {
	if p.BuyThreshold >= p.SellThreshold {
		return ErrInvertedThresholds
	}
	if p.VolatilityThreshold == 0 {
		return ErrZeroVolatilityCap
	}
	return nil
}

// Infer maps an observation to a signal. Pure and total: any input yields
// a signal, with Hold as the fallthrough.
//
// Volatility above the cap forces Hold regardless of price. Price at or
// below the buy threshold selects the buy class, at or above the sell
// threshold the sell class. Within either class, a trend stronger than the
// trend threshold escalates to the strong variant.
func Infer(input MarketInput, p Params) TradeSignal {
	if input.Volatility > p.VolatilityThreshold {
		return Hold
	}
	switch {
	case input.Price <= p.BuyThreshold:
		if input.Trend > int64(p.TrendThreshold) {
			return StrongBuy
		}
		return Buy
	case input.Price >= p.SellThreshold:
		if input.Trend > int64(p.TrendThreshold) {
			return StrongSell
		}
		return Sell
	default:
		return Hold
	}
}
