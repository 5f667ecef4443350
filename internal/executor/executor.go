// Package executor runs the phases of one iteration: confirming pongs,
// detecting new pings, cleaning up completed exchanges, answering pending
// pings, and reclaiming in-flight pongs after a restart. Which phases run,
// and in what order, depends on the iteration type.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
	"github.com/fcanela/ping-pong-bot/internal/gateway"
	"github.com/fcanela/ping-pong-bot/internal/observability"
	"github.com/fcanela/ping-pong-bot/internal/reconciler"
)

// Store is the subset of internal/store.Store the executor needs.
type Store interface {
	GetExchange(pingHash string) (*exchange.Exchange, error)
	PutPingDetected(pingHash string, pingBlock uint64) error
	PutPongIssued(pingHash string, pingBlock *uint64, pongHash string, pongNonce uint64, pongTimestamp time.Time) error
	PutCompletedExchange(pingHash string, pingBlock *uint64, pongHash string, pongBlock uint64, pongNonce *uint64, pongTimestamp *time.Time) error
	GetPingDetectedExchanges() ([]exchange.Exchange, error)
	RemoveCompletedExchanges() ([]exchange.Exchange, error)
}

// Executor dispatches the phases of one iteration.
type Executor struct {
	Gateway    gateway.Gateway
	Store      Store
	Reconciler *reconciler.Reconciler
	Log        *zap.Logger
	Metrics    *observability.Metrics // optional
}

func New(gw gateway.Gateway, st Store, rec *reconciler.Reconciler, log *zap.Logger) *Executor {
	return &Executor{Gateway: gw, Store: st, Reconciler: rec, Log: log}
}

// Run executes every phase for it, in the fixed order its type prescribes.
// An error aborts the iteration before the caller marks it Completed,
// which is exactly the signal the planner needs on the next tick.
func (e *Executor) Run(ctx context.Context, it exchange.Iteration) error {
	switch it.Type {
	case exchange.IterationRecoveryStart:
		return e.processMempool(ctx)

	case exchange.IterationNormal:
		from, to := *it.FromBlock, it.ToBlock
		if err := e.processPongs(ctx, from, to, false); err != nil {
			return err
		}
		if err := e.processPings(ctx, from, to); err != nil {
			return err
		}
		if err := e.cleanup(ctx); err != nil {
			return err
		}
		if err := e.answerPendingPings(ctx); err != nil {
			return err
		}
		if e.Reconciler != nil {
			if err := e.Reconciler.ProcessStalePongs(ctx); err != nil {
				return err
			}
		}
		return nil

	case exchange.IterationRecovery:
		from, to := *it.FromBlock, it.ToBlock
		if err := e.processPongs(ctx, from, to, true); err != nil {
			return err
		}
		if err := e.processPings(ctx, from, to); err != nil {
			return err
		}
		return e.cleanup(ctx)

	case exchange.IterationRecoveryEnd:
		return e.answerPendingPings(ctx)

	default:
		return fmt.Errorf("executor: unknown iteration type %q", it.Type)
	}
}

// processPongs completes exchanges whose pong has been observed on chain.
func (e *Executor) processPongs(ctx context.Context, from, to uint64, recovery bool) error {
	pongs, err := e.Gateway.GetPongs(ctx, from, to)
	if err != nil {
		return fmt.Errorf("executor: get pongs [%d,%d]: %w", from, to, err)
	}

	for _, p := range pongs {
		if recovery {
			if err := e.processPongRecovery(ctx, p); err != nil {
				return err
			}
			continue
		}
		if err := e.processPongNormal(p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) processPongNormal(p gateway.PongLog) error {
	ex, err := e.Store.GetExchange(p.PingHash)
	if err != nil {
		return fmt.Errorf("executor: load exchange %s: %w", p.PingHash, err)
	}
	if ex == nil {
		e.Log.Debug("pong observed for unknown ping, ignoring", zap.String("pingHash", p.PingHash), zap.String("pongHash", p.TxHash))
		return nil
	}
	if ex.State != exchange.StatePongIssued {
		e.Log.Debug("pong observed for exchange not awaiting confirmation, ignoring",
			zap.String("pingHash", p.PingHash), zap.String("state", string(ex.State)))
		return nil
	}
	if ex.PongHash != p.TxHash {
		e.Log.Debug("pong observed with mismatched hash, likely a sibling wallet, ignoring",
			zap.String("pingHash", p.PingHash), zap.String("stored", ex.PongHash), zap.String("observed", p.TxHash))
		return nil
	}

	if err := e.Store.PutCompletedExchange(ex.PingHash, ex.PingBlock, p.TxHash, p.BlockNumber, ex.PongNonce, ex.PongTimestamp); err != nil {
		return fmt.Errorf("executor: complete exchange %s: %w", p.PingHash, err)
	}
	if e.Metrics != nil {
		e.Metrics.PongsConfirmed.Inc()
	}
	return nil
}

func (e *Executor) processPongRecovery(ctx context.Context, p gateway.PongLog) error {
	tx, err := e.Gateway.GetTransaction(ctx, p.TxHash)
	if err != nil {
		return fmt.Errorf("executor: recovery: get transaction for pong %s: %w", p.TxHash, err)
	}
	if tx == nil || tx.From != e.Gateway.WalletAddress() {
		return nil
	}

	existing, err := e.Store.GetExchange(p.PingHash)
	if err != nil {
		return fmt.Errorf("executor: recovery: load exchange %s: %w", p.PingHash, err)
	}

	var pingBlock *uint64
	var pongTimestamp *time.Time
	if existing != nil {
		pingBlock = existing.PingBlock
		pongTimestamp = existing.PongTimestamp
	}

	nonce := tx.Nonce
	if err := e.Store.PutCompletedExchange(p.PingHash, pingBlock, p.TxHash, p.BlockNumber, &nonce, pongTimestamp); err != nil {
		return fmt.Errorf("executor: recovery: upsert completed exchange %s: %w", p.PingHash, err)
	}
	if e.Metrics != nil {
		e.Metrics.PongsConfirmed.Inc()
	}
	return nil
}

// processPings detects new Ping logs and records them as Detected
// exchanges, skipping any pingHash already known.
func (e *Executor) processPings(ctx context.Context, from, to uint64) error {
	pings, err := e.Gateway.GetPings(ctx, from, to)
	if err != nil {
		return fmt.Errorf("executor: get pings [%d,%d]: %w", from, to, err)
	}
	for _, p := range pings {
		existing, err := e.Store.GetExchange(p.TxHash)
		if err != nil {
			return fmt.Errorf("executor: load exchange %s: %w", p.TxHash, err)
		}
		if existing != nil {
			continue
		}
		if err := e.Store.PutPingDetected(p.TxHash, p.BlockNumber); err != nil {
			return fmt.Errorf("executor: detect ping %s: %w", p.TxHash, err)
		}
		if e.Metrics != nil {
			e.Metrics.PingsDetected.Inc()
		}
	}
	return nil
}

// cleanup deletes every Completed exchange, keeping the store bounded to
// the exchanges still in flight.
func (e *Executor) cleanup(ctx context.Context) error {
	removed, err := e.Store.RemoveCompletedExchanges()
	if err != nil {
		return fmt.Errorf("executor: cleanup: %w", err)
	}
	if len(removed) > 0 {
		e.Log.Debug("cleaned up completed exchanges", zap.Int("count", len(removed)))
	}
	return nil
}

// answerPendingPings submits a pong for every Detected exchange, assigning
// consecutive nonces starting at the wallet's next free nonce. Submission
// and persistence happen one exchange at a time, never batched, so a crash
// leaves at most one submitted-but-unstored pong for the next recovery's
// mempool scan to reclaim.
func (e *Executor) answerPendingPings(ctx context.Context) error {
	pending, err := e.Store.GetPingDetectedExchanges()
	if err != nil {
		return fmt.Errorf("executor: list pending pings: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	nonce, err := e.Gateway.WalletNonce(ctx)
	if err != nil {
		return fmt.Errorf("executor: fetch wallet nonce: %w", err)
	}

	for _, ex := range pending {
		result, err := e.Gateway.Pong(ctx, ex.PingHash, gateway.PongOptions{Nonce: &nonce})
		if err != nil {
			return fmt.Errorf("executor: submit pong for %s: %w", ex.PingHash, err)
		}
		if err := e.Store.PutPongIssued(ex.PingHash, ex.PingBlock, result.PongHash, nonce, time.Time{}); err != nil {
			return fmt.Errorf("executor: persist pong for %s: %w", ex.PingHash, err)
		}
		if e.Metrics != nil {
			e.Metrics.PongsIssued.Inc()
		}
		nonce++
	}
	return nil
}

// processMempool reclaims pongs this wallet already submitted but never
// persisted, by scanning the mempool for our own pending transactions.
func (e *Executor) processMempool(ctx context.Context) error {
	found, err := e.Gateway.ScanMyMempoolPongs(ctx)
	if err != nil {
		return fmt.Errorf("executor: scan mempool: %w", err)
	}
	for _, mp := range found {
		if err := e.Store.PutPongIssued(mp.PingHash, mp.PingBlock, mp.PongHash, mp.PongNonce, time.Time{}); err != nil {
			return fmt.Errorf("executor: reclaim in-flight pong %s: %w", mp.PongHash, err)
		}
	}
	return nil
}
