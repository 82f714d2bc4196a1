// Package engine is the central orchestrator of the wager bot.
//
// It wires together all subsystems:
//
//  1. Ledger replays the event log and serves all market/bet/withdrawal state.
//  2. Feed client talks to the social platform (mentions, thread roots, replies).
//  3. Router classifies each mention and applies it to the ledger.
//  4. Ingestor polls the feed on an adaptive schedule and dispatches mentions.
//  5. Wallet executes withdrawal payouts, called synchronously by the router
//     so every ledger debit gets its transfer attempted; failures are
//     reported back to the ledger as stranded funds.
//  6. Optional dashboard server streams ledger facts over WebSocket.
//
// Lifecycle: New() → Start() → [runs until SIGINT] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"

	"wagerbot/internal/api"
	"wagerbot/internal/command"
	"wagerbot/internal/config"
	"wagerbot/internal/feed"
	"wagerbot/internal/ingest"
	"wagerbot/internal/ledger"
	"wagerbot/internal/wallet"
)

// Engine owns the lifecycle of all goroutines and resources.
type Engine struct {
	cfg      config.Config
	ledger   *ledger.Ledger
	client   *feed.Client
	router   *command.Router
	ingestor *ingest.Ingestor
	wallet   *wallet.Wallet
	server   *api.Server
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and wires all engine components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	led, err := ledger.Open(cfg.Ledger, logger)
	if err != nil {
		return nil, err
	}

	w, err := wallet.New(cfg.Wallet, logger)
	if err != nil {
		led.Close()
		return nil, err
	}

	client := feed.NewClient(cfg.Feed, logger)
	parser := command.NewParser(cfg.Ledger.MinBetAmount, cfg.Ledger.MaxBetAmount)
	router := command.NewRouter(parser, led, client, w, cfg.Ledger.DefaultDurationDays, logger)

	ingestor, err := ingest.New(cfg.Ingest, client, router, cfg.Feed.BotUserID, logger)
	if err != nil {
		led.Close()
		w.Close()
		return nil, err
	}

	var server *api.Server
	if cfg.Dashboard.Enabled {
		server = api.NewServer(cfg.Dashboard, led, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:      cfg,
		ledger:   led,
		client:   client,
		router:   router,
		ingestor: ingestor,
		wallet:   w,
		server:   server,
		logger:   logger.With("component", "engine"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches the poll loop, the fact consumer, and the dashboard server.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.ingestor.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("ingestor error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.consumeFacts()
	}()

	if e.server != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.server.Start(); err != nil {
				e.logger.Error("dashboard server error", "error", err)
			}
		}()
	}

	return nil
}

// Stop gracefully shuts down: stops the poll loop mid-cycle-safe, closes the
// dashboard server, waits for goroutines, and closes resources.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")

	e.cancel()

	if e.server != nil {
		if err := e.server.Stop(); err != nil {
			e.logger.Error("dashboard shutdown error", "error", err)
		}
	}

	e.wg.Wait()

	e.wallet.Close()
	if err := e.ledger.Close(); err != nil {
		e.logger.Error("ledger close error", "error", err)
	}

	e.logger.Info("shutdown complete")
}

// consumeFacts drains the ledger's fact channel into the dashboard stream.
// Facts are observability only; nothing with financial effect rides this
// channel, so a dropped fact costs a dashboard update, not money.
func (e *Engine) consumeFacts() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case f := <-e.ledger.Facts():
			if e.server != nil {
				e.server.Broadcast(f)
			}
		}
	}
}
