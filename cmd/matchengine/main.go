// Command matchengine runs a centralized limit-order-book matching engine
// core as a long-lived process.
//
// Architecture:
//
//	main.go               — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	internal/engine        — orchestrator: wires controller + event sinks + snapshot ticker, owns startup replay
//	internal/controller    — single-writer façade over every mutating RPC (§4.8)
//	internal/market        — order book + matching (§4.6–§4.7)
//	internal/balance       — ledger + idempotent balance updates (§4.4–§4.5)
//	internal/oplog         — append-only operation log + replay (§4.9)
//	internal/snapshot      — periodic whole-state snapshots (§4.11)
//	internal/sink          — pluggable event sink: memory/file/message-bus/db (§4.10)
package main

import (
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"matchengine/internal/config"
	"matchengine/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MATCHENGINE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("matching engine started",
		"assets", len(cfg.Assets),
		"markets", len(cfg.Markets),
		"user_order_num_limit", cfg.Engine.UserOrderNumLimit,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
