package app

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pm-vault-bot/internal/alerts"
	"pm-vault-bot/internal/audit"
	"pm-vault-bot/internal/compliance"
	"pm-vault-bot/internal/config"
	"pm-vault-bot/internal/engine"
	"pm-vault-bot/internal/funding"
	"pm-vault-bot/internal/market"
	"pm-vault-bot/internal/metrics"
	"pm-vault-bot/internal/signal"
	"pm-vault-bot/internal/state"
	"pm-vault-bot/internal/state/sqlite"
	"pm-vault-bot/internal/vault"
)

// App owns one vault, one strategy config, and one simulated market, and
// drives trade cycles on a timer. State is loaded from the store at
// startup and saved after every cycle. Slots are a per-process counter
// seeded from the last persisted trade slot.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    state.Store
	engine   *engine.Engine
	observer *engine.Observer
	metrics  *metrics.Metrics
	prom     *metrics.Prometheus
	audit    *audit.Writer
	alerts   *alerts.Telegram

	vault    *vault.Vault
	strategy *vault.StrategyConfig
	market   *market.Market
	position *vault.Position
	slot     uint64

	complianceLimits compliance.Limits
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	auditWriter, err := audit.New(cfg.Audit, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	oracle, err := compliance.ParseOracle(cfg.Vault.ComplianceOracle)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eng := engine.New(log, m, engine.Options{
		Limits: market.Limits{
			MinTradeAmount: cfg.Market.MinTradeAmount,
			MaxTradeAmount: cfg.Market.MaxTradeAmount,
		},
		MaxPositions:   cfg.Vault.MaxActivePositions,
		MaxSlippageBps: cfg.Market.MaxSlippageBps,
	})

	return &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		engine:   eng,
		observer: engine.NewObserver(cfg.Market.PriceScale, cfg.Strategy.ObservationWindow),
		metrics:  m,
		prom:     prom,
		audit:    auditWriter,
		alerts:   alerts.NewTelegram(cfg.Telegram, log),
		complianceLimits: compliance.Limits{
			MaxRiskScore: cfg.Vault.MaxRiskScore,
			MaxAgeSlots:  cfg.Vault.MaxAttestationAge,
			Oracle:       oracle,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.audit.Close()
	a.audit.Start(ctx)

	if a.prom != nil {
		server := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: a.prom.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	if err := a.loadState(ctx); err != nil {
		return err
	}
	a.log.Info("state loaded",
		zap.String("vault", a.vault.ID),
		zap.Uint64("available_balance", a.vault.AvailableBalance),
		zap.Uint32("active_positions", a.vault.ActivePositions),
		zap.Uint64("yes_price", a.market.Price(market.Yes)))

	ticker := time.NewTicker(a.cfg.Strategy.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := a.persist(context.Background()); err != nil {
				a.log.Warn("final persist failed", zap.Error(err))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := a.tick(ctx); err != nil {
				a.log.Warn("trade cycle failed", zap.Error(err))
			}
		}
	}
}

func (a *App) loadState(ctx context.Context) error {
	vaultRecord, ok, err := state.Load[state.VaultRecord](ctx, a.store, state.VaultKey(a.cfg.Vault.VaultID))
	if err != nil {
		return err
	}
	if ok {
		a.vault = vaultRecord.ToVault()
	} else {
		a.vault = vault.NewVault(a.cfg.Vault.VaultID, time.Now().UTC())
		if err := a.bootstrapDeposit(); err != nil {
			return err
		}
		a.log.Info("vault created",
			zap.String("vault", a.vault.ID),
			zap.Uint64("initial_deposit", a.vault.TotalDeposited))
	}
	a.slot = a.vault.LastTradeSlot

	strategyRecord, ok, err := state.Load[state.StrategyRecord](ctx, a.store, state.StrategyKey(a.vault.ID))
	if err != nil {
		return err
	}
	if ok {
		a.strategy = strategyRecord.ToStrategy()
	} else {
		a.strategy, err = vault.NewStrategyConfig(a.vault.ID, signal.Params{
			BuyThreshold:        a.cfg.Strategy.BuyThreshold,
			SellThreshold:       a.cfg.Strategy.SellThreshold,
			TrendThreshold:      a.cfg.Strategy.TrendThreshold,
			VolatilityThreshold: a.cfg.Strategy.VolatilityThreshold,
		}, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	marketRecord, ok, err := state.Load[state.MarketRecord](ctx, a.store, state.MarketKey(a.cfg.Market.MarketID))
	if err != nil {
		return err
	}
	if ok {
		a.market = marketRecord.ToMarket()
	} else {
		a.market, err = market.New(a.cfg.Market.MarketID, a.cfg.Market.InitialLiquidity,
			a.cfg.Market.FeeBps, a.cfg.Market.PriceScale, time.Now().UTC().Add(a.cfg.Market.Duration))
		if err != nil {
			return err
		}
	}

	positionRecord, ok, err := state.Load[state.PositionRecord](ctx, a.store, state.PositionKey(a.vault.ID, a.market.ID))
	if err != nil {
		return err
	}
	if ok {
		pos := positionRecord.ToPosition()
		if pos.Status == vault.StatusOpen {
			a.position = pos
		}
	}
	return a.persist(ctx)
}

// bootstrapDeposit funds a brand-new vault through the deposit-note path
// so the ledger and counters see the same flow as externally submitted
// notes.
func (a *App) bootstrapDeposit() error {
	if a.cfg.Vault.InitialDeposit == 0 {
		return nil
	}
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return err
	}
	commitment, err := funding.ComputeCommitment(secret, a.cfg.Vault.InitialDeposit)
	if err != nil {
		return err
	}
	nullifier, err := funding.ComputeNullifier(secret)
	if err != nil {
		return err
	}
	note := funding.DepositNote{
		Commitment:    commitment,
		NullifierHash: nullifier,
		Amount:        a.cfg.Vault.InitialDeposit,
		Proof:         secret[:],
	}
	if err := funding.Apply(a.vault, note, a.depositBounds()); err != nil {
		return err
	}
	a.metrics.Deposits.Inc()
	return nil
}

func (a *App) depositBounds() funding.Bounds {
	return funding.Bounds{MinDeposit: a.cfg.Vault.MinDeposit, MaxDeposit: a.cfg.Vault.MaxDeposit}
}

func (a *App) tick(ctx context.Context) error {
	now := time.Now().UTC()
	a.slot++
	a.observer.Observe(a.market.Price(market.Yes))
	input := a.observer.Input()

	if a.position != nil {
		if err := a.manageOpenPosition(ctx, input, now); err != nil {
			return err
		}
	} else {
		if err := a.runCycle(ctx, input, now); err != nil {
			return err
		}
	}

	a.audit.EnqueueSnapshot(audit.VaultSnapshot{
		Time:             now,
		VaultID:          a.vault.ID,
		TotalDeposited:   a.vault.TotalDeposited,
		AvailableBalance: a.vault.AvailableBalance,
		ActivePositions:  a.vault.ActivePositions,
		TotalVolume:      a.vault.TotalVolume,
		LastTradeSlot:    a.vault.LastTradeSlot,
		YesPrice:         a.market.Price(market.Yes),
		NoPrice:          a.market.Price(market.No),
	})
	return a.persist(ctx)
}

// manageOpenPosition holds one position per market: an opposite-class
// signal closes it at the current price, anything else leaves it alone.
func (a *App) manageOpenPosition(ctx context.Context, input signal.MarketInput, now time.Time) error {
	sig, err := a.engine.InferSignal(a.strategy, input, now)
	if err != nil {
		return err
	}
	a.auditEvent(now, sig, engine.CycleResult{})
	opposite := (a.position.Side == market.Yes && sig.IsSell()) ||
		(a.position.Side == market.No && sig.IsBuy())
	if !opposite {
		a.log.Debug("holding position",
			zap.String("signal", sig.String()),
			zap.Int64("unrealized_pnl", a.engine.QueryPnL(a.position, a.market)))
		return nil
	}
	exitPrice := a.market.Price(a.position.Side)
	pnl, err := a.engine.ClosePosition(a.vault, a.position, a.market, now)
	if err != nil {
		return err
	}
	if err := a.alerts.PositionClosed(ctx, a.vault.ID, a.position.MarketID,
		a.position.Side.String(), exitPrice, pnl); err != nil {
		a.log.Warn("alert send failed", zap.Error(err))
	}
	// Persist the settled record now; the regular persist pass only writes
	// open positions.
	if err := state.Save(ctx, a.store, state.PositionKey(a.vault.ID, a.market.ID), state.FromPosition(a.position)); err != nil {
		return err
	}
	a.position = nil
	return nil
}

func (a *App) runCycle(ctx context.Context, input signal.MarketInput, now time.Time) error {
	res, err := a.engine.ExecuteTradeCycle(a.vault, a.strategy, a.market, input, now, a.slot)
	if err != nil {
		return err
	}
	a.auditEvent(now, res.Signal, res)
	if !res.Traded {
		return nil
	}
	a.position = res.Position
	if err := a.alerts.TradeExecuted(ctx, a.vault.ID, a.market.ID, res.Signal.String(),
		res.Position.Side.String(), res.Outcome.AmountTraded, res.Outcome.SharesReceived,
		res.Outcome.ExecutionPrice); err != nil {
		a.log.Warn("alert send failed", zap.Error(err))
	}
	return nil
}

func (a *App) auditEvent(now time.Time, sig signal.TradeSignal, res engine.CycleResult) {
	event := audit.TradeEvent{
		Time:       now,
		VaultID:    a.vault.ID,
		MarketID:   a.market.ID,
		Slot:       a.slot,
		Signal:     sig.String(),
		SignalCode: sig.Code(),
		Traded:     res.Traded,
	}
	if res.Traded {
		event.Side = res.Position.Side.String()
		event.AmountTraded = res.Outcome.AmountTraded
		event.SharesReceived = res.Outcome.SharesReceived
		event.ExecutionPrice = res.Outcome.ExecutionPrice
		event.FeesPaid = res.Outcome.FeesPaid
	}
	a.audit.EnqueueEvent(event)
}

func (a *App) persist(ctx context.Context) error {
	if err := state.Save(ctx, a.store, state.VaultKey(a.vault.ID), state.FromVault(a.vault)); err != nil {
		return err
	}
	if err := state.Save(ctx, a.store, state.StrategyKey(a.vault.ID), state.FromStrategy(a.strategy)); err != nil {
		return err
	}
	if err := state.Save(ctx, a.store, state.MarketKey(a.market.ID), state.FromMarket(a.market)); err != nil {
		return err
	}
	if a.position != nil {
		return state.Save(ctx, a.store, state.PositionKey(a.vault.ID, a.market.ID), state.FromPosition(a.position))
	}
	return nil
}

// Deposit verifies and applies an externally submitted note.
func (a *App) Deposit(ctx context.Context, note funding.DepositNote) error {
	if err := funding.Apply(a.vault, note, a.depositBounds()); err != nil {
		return err
	}
	a.metrics.Deposits.Inc()
	return a.persist(ctx)
}

// Withdraw runs the full withdrawal flow for an approved operator
// request: compliance gate, ledger debit, persistence.
func (a *App) Withdraw(ctx context.Context, recipient string, amount uint64, att compliance.Attestation) error {
	req, err := funding.NewWithdrawalRequest(a.vault.ID, recipient, amount, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := req.Approve(time.Now().UTC()); err != nil {
		return err
	}
	if err := req.Complete(a.vault, att, a.slot, a.complianceLimits, time.Now().UTC()); err != nil {
		return err
	}
	a.metrics.Withdrawals.Inc()
	a.log.Info("withdrawal completed",
		zap.String("vault", a.vault.ID),
		zap.String("recipient", recipient),
		zap.Uint64("amount", amount))
	return a.persist(ctx)
}
