package engine

import (
	"pm-vault-bot/internal/signal"
)

// Observer turns the market's own price history into the observation the
// signal policy consumes. Trend is the signed move across the window;
// volatility is the standard deviation of per-step returns, kept on the
// fixed-point scale so signals stay reproducible.
type Observer struct {
	priceScale uint64
	window     int
	prices     []uint64
}

func NewObserver(priceScale uint64, window int) *Observer {
	if window < 2 {
		window = 2
	}
	return &Observer{priceScale: priceScale, window: window}
}

func (o *Observer) Observe(price uint64) {
	o.prices = append(o.prices, price)
	if len(o.prices) > o.window {
		o.prices = o.prices[len(o.prices)-o.window:]
	}
}

// Ready reports whether enough history exists to derive trend and
// volatility. Before that, Input returns a flat observation that infers
// to Hold under any sane thresholds.
func (o *Observer) Ready() bool {
	return len(o.prices) >= 2
}

func (o *Observer) Input() signal.MarketInput {
	if len(o.prices) == 0 {
		return signal.MarketInput{Price: o.priceScale / 2}
	}
	last := o.prices[len(o.prices)-1]
	if !o.Ready() {
		return signal.MarketInput{Price: last}
	}
	first := o.prices[0]
	var trend int64
	if last >= first {
		trend = int64(last - first)
	} else {
		trend = -int64(first - last)
	}
	return signal.MarketInput{
		Price:      last,
		Trend:      trend,
		Volatility: o.volatility(),
	}
}

// volatility is the stddev of scaled per-step returns over the window.
func (o *Observer) volatility() uint64 {
	var sum, sumSq int64
	var count int64
	for i := 1; i < len(o.prices); i++ {
		prev := o.prices[i-1]
		curr := o.prices[i]
		if prev == 0 {
			continue
		}
		var r int64
		if curr >= prev {
			r = int64((curr - prev) * o.priceScale / prev)
		} else {
			r = -int64((prev - curr) * o.priceScale / prev)
		}
		// Cap a single step at a 10x move so the squared term stays in range.
		limit := int64(o.priceScale * 10)
		if r > limit {
			r = limit
		} else if r < -limit {
			r = -limit
		}
		sum += r
		sumSq += r * r
		count++
	}
	if count == 0 {
		return 0
	}
	mean := sum / count
	variance := sumSq/count - mean*mean
	if variance < 0 {
		variance = 0
	}
	return isqrt(uint64(variance))
}

// isqrt is the integer square root (floor).
func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
