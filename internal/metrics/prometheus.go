package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "pm_vault_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry         *prometheus.Registry
	signalsEvaluated prometheus.Counter
	holdSignals      prometheus.Counter
	tradesExecuted   prometheus.Counter
	tradesFailed     prometheus.Counter
	positionsOpened  prometheus.Counter
	positionsClosed  prometheus.Counter
	deposits         prometheus.Counter
	withdrawals      prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	signalsEvaluated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "signals_evaluated_total",
		Help:      "Total number of signal evaluations, holds included.",
	})
	holdSignals := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "hold_signals_total",
		Help:      "Total number of evaluations that resolved to hold.",
	})
	tradesExecuted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_executed_total",
		Help:      "Total number of trades executed against the market.",
	})
	tradesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "trades_failed_total",
		Help:      "Total number of trade executions rejected or failed.",
	})
	positionsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_opened_total",
		Help:      "Total number of positions opened.",
	})
	positionsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_closed_total",
		Help:      "Total number of positions closed or liquidated.",
	})
	deposits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "deposits_total",
		Help:      "Total number of verified deposits applied.",
	})
	withdrawals := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "withdrawals_total",
		Help:      "Total number of withdrawals completed.",
	})

	registry.MustRegister(signalsEvaluated, holdSignals, tradesExecuted, tradesFailed,
		positionsOpened, positionsClosed, deposits, withdrawals)

	m := &Metrics{
		SignalsEvaluated: promCounter{signalsEvaluated},
		HoldSignals:      promCounter{holdSignals},
		TradesExecuted:   promCounter{tradesExecuted},
		TradesFailed:     promCounter{tradesFailed},
		PositionsOpened:  promCounter{positionsOpened},
		PositionsClosed:  promCounter{positionsClosed},
		Deposits:         promCounter{deposits},
		Withdrawals:      promCounter{withdrawals},
	}

	return &Prometheus{
		Metrics:          m,
		registry:         registry,
		signalsEvaluated: signalsEvaluated,
		holdSignals:      holdSignals,
		tradesExecuted:   tradesExecuted,
		tradesFailed:     tradesFailed,
		positionsOpened:  positionsOpened,
		positionsClosed:  positionsClosed,
		deposits:         deposits,
		withdrawals:      withdrawals,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
