package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.SignalsEvaluated.Inc()
	prom.Metrics.HoldSignals.Inc()
	prom.Metrics.TradesExecuted.Inc()
	prom.Metrics.TradesFailed.Inc()
	prom.Metrics.PositionsOpened.Inc()
	prom.Metrics.PositionsClosed.Inc()
	prom.Metrics.Deposits.Inc()
	prom.Metrics.Withdrawals.Inc()

	assertCounter(t, prom.signalsEvaluated, 1)
	assertCounter(t, prom.holdSignals, 1)
	assertCounter(t, prom.tradesExecuted, 1)
	assertCounter(t, prom.tradesFailed, 1)
	assertCounter(t, prom.positionsOpened, 1)
	assertCounter(t, prom.positionsClosed, 1)
	assertCounter(t, prom.deposits, 1)
	assertCounter(t, prom.withdrawals, 1)
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	if got := testutil.ToFloat64(counter); got != expected {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}
