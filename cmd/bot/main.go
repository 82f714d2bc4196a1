// Wager Bot — turns social posts into binary-outcome betting markets with an
// escrowed settlement ledger.
//
// Architecture:
//
//	main.go            — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go   — orchestrator: wires feed → router → ledger, manages goroutine lifecycle
//	ledger/ledger.go   — authoritative state: append-only sqlite event log + replayed in-memory view
//	payout/payout.go   — pure settlement math: proportional fee-adjusted payouts at 18-decimal units
//	command/parser.go  — free-text bet parsing: stake amount + agree/disagree position
//	command/router.go  — ordered keyword classification and ledger dispatch, reply formatting
//	feed/client.go     — REST client for the mention feed (fetch mentions, thread roots, post replies)
//	ingest/ingestor.go — adaptive poll loop with crash-safe cursor checkpointing
//	ingest/backoff.go  — pure poll-interval state machine (idle backoff, rate-limit cooldown)
//	wallet/wallet.go   — on-chain payout transfers for withdrawals
//	api/server.go      — operator dashboard: market snapshots + live fact stream over WebSocket
//
// How a bet happens:
//
//	Someone replies to a prediction post mentioning the bot: "I bet 0.1 ETH
//	that this is true". The ingestor picks up the mention, the router parses
//	it, the ledger escrows the stake, and the bot replies with the updated
//	pool. When a resolver later calls the outcome, winners split the losing
//	pool (minus the platform fee) in proportion to their stake, and anyone
//	can withdraw their credits to their wallet.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wagerbot/internal/config"
	"wagerbot/internal/engine"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("WAGER_CONFIG"); p != "" {
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

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	// Create and start engine
	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.Wallet.DryRun {
		logger.Warn("DRY-RUN MODE — withdrawal transfers will be logged, not sent")
	}

	logger.Info("wager bot started",
		"bot_user", cfg.Feed.BotUserID,
		"fee_bps", cfg.Ledger.FeeBps,
		"dashboard", cfg.Dashboard.Enabled,
		"dry_run", cfg.Wallet.DryRun,
	)

	// Wait for shutdown signal
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
