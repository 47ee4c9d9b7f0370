package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"pm-vault-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// TradeEvent is one signal evaluation and its outcome, actionable or not.
type TradeEvent struct {
	Time           time.Time
	VaultID        string
	MarketID       string
	Slot           uint64
	Signal         string
	SignalCode     uint8
	Traded         bool
	Side           string
	AmountTraded   uint64
	SharesReceived uint64
	ExecutionPrice uint64
	FeesPaid       uint64
}

type VaultSnapshot struct {
	Time             time.Time
	VaultID          string
	TotalDeposited   uint64
	AvailableBalance uint64
	ActivePositions  uint32
	TotalVolume      uint64
	LastTradeSlot    uint64
	YesPrice         uint64
	NoPrice          uint64
}

// Writer ships trade events and vault snapshots to Postgres off the hot
// path. Full queues drop rather than block the trade cycle.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	events    chan TradeEvent
	snapshots chan VaultSnapshot
	started   atomic.Bool
	dropEvent atomic.Uint64
	dropSnap  atomic.Uint64
}

func New(cfg config.AuditConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("audit dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		events:    make(chan TradeEvent, queueSize),
		snapshots: make(chan VaultSnapshot, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueEvent(event TradeEvent) {
	if w == nil {
		return
	}
	select {
	case w.events <- event:
		return
	default:
		if w.dropEvent.Add(1) == 1 && w.log != nil {
			w.log.Warn("audit event queue full")
		}
	}
}

func (w *Writer) EnqueueSnapshot(snapshot VaultSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.snapshots <- snapshot:
		return
	default:
		if w.dropSnap.Add(1) == 1 && w.log != nil {
			w.log.Warn("audit snapshot queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.events:
			w.writeEvent(ctx, event)
		case snap := <-w.snapshots:
			w.writeSnapshot(ctx, snap)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("audit db not initialized")
	}
	if err := w.exec(ctx, `CREATE TABLE IF NOT EXISTS trade_events (
		ts TIMESTAMPTZ NOT NULL,
		vault_id TEXT NOT NULL,
		market_id TEXT NOT NULL,
		slot BIGINT NOT NULL,
		signal TEXT NOT NULL,
		signal_code SMALLINT NOT NULL,
		traded BOOLEAN NOT NULL,
		side TEXT NOT NULL,
		amount_traded NUMERIC NOT NULL,
		shares_received NUMERIC NOT NULL,
		execution_price NUMERIC NOT NULL,
		fees_paid NUMERIC NOT NULL
	)`); err != nil {
		return err
	}
	return w.exec(ctx, `CREATE TABLE IF NOT EXISTS vault_snapshots (
		ts TIMESTAMPTZ NOT NULL,
		vault_id TEXT NOT NULL,
		total_deposited NUMERIC NOT NULL,
		available_balance NUMERIC NOT NULL,
		active_positions INTEGER NOT NULL,
		total_volume NUMERIC NOT NULL,
		last_trade_slot BIGINT NOT NULL,
		yes_price NUMERIC NOT NULL,
		no_price NUMERIC NOT NULL
	)`)
}

func (w *Writer) writeEvent(ctx context.Context, event TradeEvent) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := `INSERT INTO trade_events (
		ts, vault_id, market_id, slot, signal, signal_code, traded, side,
		amount_traded, shares_received, execution_price, fees_paid
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	)`
	if _, err := w.db.ExecContext(ctx, query,
		event.Time,
		event.VaultID,
		event.MarketID,
		int64(event.Slot),
		event.Signal,
		int16(event.SignalCode),
		event.Traded,
		event.Side,
		event.AmountTraded,
		event.SharesReceived,
		event.ExecutionPrice,
		event.FeesPaid,
	); err != nil && w.log != nil {
		w.log.Warn("audit event insert failed", zap.Error(err))
	}
}

func (w *Writer) writeSnapshot(ctx context.Context, snap VaultSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := `INSERT INTO vault_snapshots (
		ts, vault_id, total_deposited, available_balance, active_positions,
		total_volume, last_trade_slot, yes_price, no_price
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9
	)`
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.VaultID,
		snap.TotalDeposited,
		snap.AvailableBalance,
		int32(snap.ActivePositions),
		snap.TotalVolume,
		int64(snap.LastTradeSlot),
		snap.YesPrice,
		snap.NoPrice,
	); err != nil && w.log != nil {
		w.log.Warn("audit snapshot insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}
