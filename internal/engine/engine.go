// Package engine is the central orchestrator of the matching engine
// process.
//
// It wires together all subsystems:
//
//  1. Controller (C8) is the single-writer façade over the asset
//     registry, balance ledger, and matching engine.
//  2. The operation log (C9) and periodic snapshots (C11) give the
//     controller's state durability and a deterministic replay path.
//  3. The event sink (C10) fans settled balance/order/trade/transfer
//     events out to whichever of File/MessageBus/DBWriter the config
//     enables, plus an always-present Memory sink, composed into one
//     Composite.
//
// Lifecycle: New() → Start() → [runs until the caller cancels] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"matchengine/internal/asset"
	"matchengine/internal/balance"
	"matchengine/internal/config"
	"matchengine/internal/controller"
	"matchengine/internal/market"
	"matchengine/internal/money"
	"matchengine/internal/oplog"
	"matchengine/internal/sequencer"
	"matchengine/internal/sink"
	"matchengine/internal/snapshot"
)

// Engine orchestrates the matching-engine core: it owns the controller's
// dependencies, the snapshot ticker, and the goroutines' lifecycle.
type Engine struct {
	cfg        config.Config
	logger     *slog.Logger
	Controller *controller.Controller

	assets   *asset.Registry
	ledger   *balance.Ledger
	market   *market.Engine
	seq      *sequencer.Sequencer
	appender *oplog.FileAppender
	sinks    []closer

	snapshotStore *snapshot.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// closer is the subset of io.Closer the sinks this package opens
// implement; kept local so engine doesn't need to import io just for this.
type closer interface {
	Close() error
}

// New builds every layer (asset registry, ledger, matching engine,
// sequencer, event sink, operation log), restores the most recent
// snapshot if one exists, replays any operation-log entries written
// after it, and returns a ready-to-run Engine.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine")

	reg := asset.NewRegistry()
	for _, a := range cfg.Assets {
		if err := reg.Register(asset.Asset{
			ID: a.ID, Symbol: a.Symbol, Name: a.Name,
			PrecStore: a.PrecStore, PrecShow: a.PrecShow,
		}); err != nil {
			return nil, fmt.Errorf("register asset %q: %w", a.ID, err)
		}
	}

	var sinks []closer
	var eventSinks []sink.EventSink

	if cfg.Sink.FilePath != "" {
		f, err := sink.OpenFile(cfg.Sink.FilePath)
		if err != nil {
			return nil, fmt.Errorf("open file sink: %w", err)
		}
		sinks = append(sinks, f)
		eventSinks = append(eventSinks, f)
	}
	if cfg.Sink.MessageBusBuffer > 0 {
		eventSinks = append(eventSinks, sink.NewMessageBus(cfg.Sink.MessageBusBuffer, logger))
	}
	if cfg.Sink.DBPath != "" {
		db, err := sink.OpenDBWriter(cfg.Sink.DBPath, cfg.Sink.DBQueueCapacity, logger)
		if err != nil {
			return nil, fmt.Errorf("open db sink: %w", err)
		}
		sinks = append(sinks, db)
		eventSinks = append(eventSinks, db)
	}
	eventSinks = append(eventSinks, sink.NewMemory())
	composite := sink.NewComposite(eventSinks...)

	ledger := balance.NewLedger(reg)
	updates := balance.NewUpdateController(ledger, composite)
	seq := sequencer.New(0, 0, 0)
	eng := market.New(ledger, seq, composite)
	eng.DisableSelfTrade = cfg.Engine.DisableSelfTrade
	eng.DisableMarketOrder = cfg.Engine.DisableMarketOrder

	for _, m := range cfg.Markets {
		minAmount, err := money.NewFromString(m.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("market %q: parse min_amount: %w", m.Name, err)
		}
		if err := eng.AddMarket(market.Config{
			Name: m.Name, Base: m.Base, Quote: m.Quote,
			AmountPrec: m.AmountPrec, PricePrec: m.PricePrec, FeePrec: m.FeePrec,
			MinAmount: minAmount,
		}); err != nil {
			return nil, fmt.Errorf("add market %q: %w", m.Name, err)
		}
	}

	appender, err := oplog.OpenFileAppender(cfg.Persistence.OpLogPath)
	if err != nil {
		return nil, fmt.Errorf("open operation log: %w", err)
	}
	sinks = append(sinks, appender)

	snapStore, err := snapshot.Open(cfg.Persistence.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	ctrl := controller.New(controller.Config{
		Assets: reg, Ledger: ledger, Updates: updates, Engine: eng, Sequencer: seq,
		Appender: appender, Sink: composite, UserOrderNumLimit: cfg.Engine.UserOrderNumLimit,
	})

	watermark, err := restoreFromSnapshot(snapStore, ctrl, seq, reg, ledger, eng, logger)
	if err != nil {
		return nil, err
	}
	if err := replayOpLog(cfg.Persistence.OpLogPath, watermark, ctrl, logger); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg: cfg, logger: logger, Controller: ctrl,
		assets: reg, ledger: ledger, market: eng, seq: seq,
		appender: appender, sinks: sinks, snapshotStore: snapStore,
		ctx: ctx, cancel: cancel,
	}, nil
}

// restoreFromSnapshot loads the latest snapshot, if any, and restores
// every layer from it, returning the operation-log watermark it recorded
// (0 if there was no snapshot — replay then starts from the very
// beginning of the log).
func restoreFromSnapshot(store *snapshot.Store, ctrl *controller.Controller, seq *sequencer.Sequencer, reg *asset.Registry, ledger *balance.Ledger, eng *market.Engine, logger *slog.Logger) (uint64, error) {
	st, found, err := store.LoadLatest()
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		logger.Info("no snapshot found, starting from an empty state")
		return 0, nil
	}
	if err := snapshot.Restore(st, seq, reg, ledger, eng); err != nil {
		return 0, fmt.Errorf("restore snapshot: %w", err)
	}
	logger.Info("restored snapshot", "op_log_watermark", st.Watermarks.OpLog)
	return st.Watermarks.OpLog, nil
}

// replayOpLog re-applies every entry past watermark in real=false mode, so
// the controller's state catches up to exactly what it was when the
// process last exited — without re-emitting sink events or re-appending
// to the log it is itself replaying from.
func replayOpLog(path string, watermark uint64, ctrl *controller.Controller, logger *slog.Logger) error {
	entries, err := oplog.ReadAll(path)
	if err != nil {
		return fmt.Errorf("read operation log: %w", err)
	}
	before := len(entries)
	if err := oplog.Replay(entries, watermark, ctrl.Apply); err != nil {
		return fmt.Errorf("replay operation log: %w", err)
	}
	logger.Info("replayed operation log", "entries", before, "watermark", watermark)
	return nil
}

// Start launches the periodic snapshot ticker.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSnapshotTicker()
	}()
	return nil
}

func (e *Engine) runSnapshotTicker() {
	ticker := time.NewTicker(e.cfg.Persistence.PersistInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.saveSnapshot()
		}
	}
}

func (e *Engine) saveSnapshot() {
	st := e.Controller.DebugDump()
	if err := e.snapshotStore.Save(st); err != nil {
		e.logger.Error("failed to save snapshot", "error", err)
	}
}

// Stop gracefully shuts down: cancels the ticker, takes one final
// snapshot, waits for goroutines, and closes every sink and the
// operation log.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()
	e.wg.Wait()

	e.saveSnapshot()

	for _, c := range e.sinks {
		if err := c.Close(); err != nil {
			e.logger.Error("failed to close sink", "error", err)
		}
	}

	e.logger.Info("shutdown complete")
}
