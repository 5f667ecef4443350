// Command pingpongbot watches a contract's Ping events and answers each
// one with exactly one Pong, surviving restarts, RPC outages and chain
// reorgs by replaying from durable local state.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/fcanela/ping-pong-bot/internal/config"
	"github.com/fcanela/ping-pong-bot/internal/executor"
	"github.com/fcanela/ping-pong-bot/internal/gateway"
	"github.com/fcanela/ping-pong-bot/internal/observability"
	"github.com/fcanela/ping-pong-bot/internal/planner"
	"github.com/fcanela/ping-pong-bot/internal/reconciler"
	"github.com/fcanela/ping-pong-bot/internal/runloop"
	"github.com/fcanela/ping-pong-bot/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pingpongbot: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := config.BuildFlagSet()
	v, err := config.BuildViper(fs, os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	cfg, err := config.BuildConfig(v)
	if err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	log, err := observability.NewLogger(cfg.DataPath)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// runCtx is deliberately not tied to the shutdown signal: an in-flight
	// RPC (submitting a pong, scanning the mempool) must run to completion
	// so its transaction hash is known and persisted. Shutdown is driven
	// entirely by loop.Stop below, which waits for the current iteration.
	runCtx := context.Background()

	gw, err := gateway.NewClient(runCtx, gateway.Config{
		PrimaryName:     cfg.PrimaryProviderName,
		PrimaryURL:      cfg.PrimaryRPCURL,
		ProviderURLs:    cfg.SecondaryProviders,
		ContractAddress: cfg.ContractAddress,
		PrivateKeyHex:   cfg.PrivateKeyHex,
		ChainID:         cfg.ChainID,
		ProvidersRPS:    cfg.ProvidersRPS,
	}, log)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer gw.Close()

	if err := gw.RefreshFeeData(runCtx); err != nil {
		return fmt.Errorf("prime fee data: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	metrics := observability.NewMetrics()
	health := observability.NewHealth()

	rec := reconciler.New(gw, st, cfg.StalePongTimeout, log)
	rec.Metrics = metrics

	ex := executor.New(gw, st, rec, log)
	ex.Metrics = metrics

	loop := runloop.New(st, gw, ex, planner.Config{
		ConfirmationBlocks: cfg.ConfirmationBlocks,
		MaxBlocksBatchSize: cfg.MaxBlocksBatchSize,
		StartingBlock:      cfg.StartingBlock,
	}, cfg.CooldownPeriod, log)
	loop.Metrics = metrics
	loop.Health = health

	serverErrCh := make(chan error, 1)
	go func() { serverErrCh <- observability.Serve(ctx, cfg.MetricsAddr, metrics, health, log) }()

	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- loop.Run(runCtx) }()

	<-ctx.Done()
	log.Info("shutdown signal received, waiting for in-flight iteration to finish")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := loop.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err := <-loopErrCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run loop: %w", err)
	}
	<-serverErrCh
	return nil
}
