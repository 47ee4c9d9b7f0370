package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"pm-vault-bot/internal/market"
	"pm-vault-bot/internal/metrics"
	"pm-vault-bot/internal/signal"
	"pm-vault-bot/internal/vault"
)

var (
	ErrVaultInactive    = errors.New("vault is inactive")
	ErrNoBalance        = errors.New("vault has no spendable balance")
	ErrStrategyInactive = errors.New("strategy is inactive")
)

// Engine runs one trade cycle at a time against a single vault. Callers
// serialize access per vault; the engine takes no locks.
type Engine struct {
	log            *zap.Logger
	metrics        *metrics.Metrics
	limits         market.Limits
	maxPositions   uint32
	maxSlippageBps uint64
}

type Options struct {
	Limits         market.Limits
	MaxPositions   uint32
	MaxSlippageBps uint64
}

func New(log *zap.Logger, m *metrics.Metrics, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Engine{
		log:            log,
		metrics:        m,
		limits:         opts.Limits,
		maxPositions:   opts.MaxPositions,
		maxSlippageBps: opts.MaxSlippageBps,
	}
}

// CycleResult reports what one trade cycle did. Traded is false for the
// deliberate no-ops (hold signal, order sized below the venue minimum).
type CycleResult struct {
	Signal   signal.TradeSignal
	Traded   bool
	Outcome  market.Outcome
	Position *vault.Position
}

// InferSignal evaluates the policy and records the evaluation in the
// strategy counters. Every evaluation counts, holds included.
func (e *Engine) InferSignal(cfg *vault.StrategyConfig, input signal.MarketInput, now time.Time) (signal.TradeSignal, error) {
	if !cfg.Active {
		return signal.Hold, ErrStrategyInactive
	}
	sig := signal.Infer(input, cfg.Params)
	cfg.RecordSignal(sig, now)
	e.metrics.SignalsEvaluated.Inc()
	if sig == signal.Hold {
		e.metrics.HoldSignals.Inc()
	}
	return sig, nil
}

// ExecuteTradeCycle runs observation through signal, sizing, market
// execution, and ledger update. Failed executions leave the vault and
// market untouched; signal counters advance regardless.
func (e *Engine) ExecuteTradeCycle(v *vault.Vault, cfg *vault.StrategyConfig, m *market.Market, input signal.MarketInput, now time.Time, slot uint64) (CycleResult, error) {
	if !v.Active {
		return CycleResult{}, ErrVaultInactive
	}
	if v.AvailableBalance == 0 {
		return CycleResult{}, ErrNoBalance
	}

	sig, err := e.InferSignal(cfg, input, now)
	if err != nil {
		return CycleResult{}, err
	}
	result := CycleResult{Signal: sig}
	if sig == signal.Hold {
		return result, nil
	}

	amount := v.PositionSize(sig.IsStrong())
	if amount > e.limits.MaxTradeAmount {
		amount = e.limits.MaxTradeAmount
	}
	if amount < e.limits.MinTradeAmount {
		e.log.Debug("order below venue minimum",
			zap.String("vault", v.ID),
			zap.Uint64("amount", amount),
			zap.Uint64("min", e.limits.MinTradeAmount))
		return result, nil
	}
	if v.ActivePositions >= e.maxPositions {
		e.log.Debug("position limit reached", zap.String("vault", v.ID))
		return result, nil
	}

	side := market.Yes
	if sig.IsSell() {
		side = market.No
	}
	order := market.Order{
		Side:           side,
		Amount:         amount,
		Type:           market.OrderMarket,
		MaxSlippageBps: e.maxSlippageBps,
	}
	outcome, err := m.Execute(order, e.limits)
	if err != nil {
		e.metrics.TradesFailed.Inc()
		e.log.Warn("trade execution failed",
			zap.String("vault", v.ID),
			zap.String("market", m.ID),
			zap.String("signal", sig.String()),
			zap.Error(err))
		return result, err
	}

	pos, err := v.OpenPosition(vault.OpenParams{
		MarketID:       m.ID,
		Side:           side,
		Shares:         outcome.SharesReceived,
		EntryPrice:     outcome.ExecutionPrice,
		InvestedAmount: outcome.AmountTraded,
		MaxPositions:   e.maxPositions,
		Now:            now,
	})
	if err != nil {
		// Position limit and balance were checked before execution;
		// reaching this means the pre-checks and ledger disagree.
		e.metrics.TradesFailed.Inc()
		return result, err
	}
	v.LastTradeSlot = slot

	e.metrics.TradesExecuted.Inc()
	e.metrics.PositionsOpened.Inc()
	e.log.Info("trade executed",
		zap.String("vault", v.ID),
		zap.String("market", m.ID),
		zap.String("signal", sig.String()),
		zap.String("side", side.String()),
		zap.Uint64("amount", outcome.AmountTraded),
		zap.Uint64("shares", outcome.SharesReceived),
		zap.Uint64("price", outcome.ExecutionPrice),
		zap.Uint64("fees", outcome.FeesPaid))

	result.Traded = true
	result.Outcome = outcome
	result.Position = pos
	return result, nil
}

// ClosePosition settles a position at the market's current price for its
// side and credits the vault.
func (e *Engine) ClosePosition(v *vault.Vault, p *vault.Position, m *market.Market, now time.Time) (int64, error) {
	price := m.Price(p.Side)
	pnl, err := p.Close(v, price, m.PriceScale, now)
	if err != nil {
		return 0, err
	}
	e.metrics.PositionsClosed.Inc()
	e.log.Info("position closed",
		zap.String("vault", v.ID),
		zap.String("market", p.MarketID),
		zap.String("side", p.Side.String()),
		zap.Uint64("exit_price", price),
		zap.Int64("pnl", pnl))
	return pnl, nil
}

// QueryPnL marks a position against the market's current price. Settled
// positions report their stored realized PnL.
func (e *Engine) QueryPnL(p *vault.Position, m *market.Market) int64 {
	return p.UnrealizedPnL(m.Price(p.Side), m.PriceScale)
}
