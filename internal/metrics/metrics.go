package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	SignalsEvaluated Counter
	HoldSignals      Counter
	TradesExecuted   Counter
	TradesFailed     Counter
	PositionsOpened  Counter
	PositionsClosed  Counter
	Deposits         Counter
	Withdrawals      Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		SignalsEvaluated: n,
		HoldSignals:      n,
		TradesExecuted:   n,
		TradesFailed:     n,
		PositionsOpened:  n,
		PositionsClosed:  n,
		Deposits:         n,
		Withdrawals:      n,
	}
}
