// Package reconciler sweeps for stale, unconfirmed pongs: exchanges that
// have sat in PongIssued past the stale timeout. For each one it checks
// the mempool and either resubmits (if the transaction was dropped) or
// bumps its fees (if it's still pending but underpriced).
package reconciler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
	"github.com/fcanela/ping-pong-bot/internal/gateway"
	"github.com/fcanela/ping-pong-bot/internal/observability"
)

// Store is the subset of the exchange store the reconciler needs.
type Store interface {
	GetStalePongIssuedExchanges(staleAfter time.Duration, now time.Time) ([]exchange.Exchange, error)
	PutPongIssued(pingHash string, pingBlock *uint64, pongHash string, pongNonce uint64, pongTimestamp time.Time) error
}

// Reconciler runs the stale-pong sweep.
type Reconciler struct {
	Gateway     gateway.Gateway
	Store       Store
	StaleAfter  time.Duration
	Log         *zap.Logger
	Metrics     *observability.Metrics // optional
	nowOverride func() time.Time      // tests only
}

func New(gw gateway.Gateway, st Store, staleAfter time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{Gateway: gw, Store: st, StaleAfter: staleAfter, Log: log}
}

func (r *Reconciler) now() time.Time {
	if r.nowOverride != nil {
		return r.nowOverride()
	}
	return time.Now().UTC()
}

// ProcessStalePongs resubmits or fee-bumps every exchange whose pong has
// sat unconfirmed past the stale timeout.
func (r *Reconciler) ProcessStalePongs(ctx context.Context) error {
	stale, err := r.Store.GetStalePongIssuedExchanges(r.StaleAfter, r.now())
	if err != nil {
		return fmt.Errorf("reconciler: list stale pongs: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	if err := r.Gateway.RefreshFeeData(ctx); err != nil {
		return fmt.Errorf("reconciler: refresh fee data: %w", err)
	}
	current := r.Gateway.CurrentFeeData()

	for _, ex := range stale {
		if err := r.processOne(ctx, ex, current); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) processOne(ctx context.Context, ex exchange.Exchange, current gateway.FeeData) error {
	match, err := r.Gateway.SearchMempoolTransaction(ctx, ex.PongHash)
	if err != nil {
		return fmt.Errorf("reconciler: search mempool for %s: %w", ex.PongHash, err)
	}

	if match == nil {
		return r.resubmit(ctx, ex)
	}

	if match.Tx.BlockNumber != nil {
		// Mined; the next processPongs pass completes it.
		r.Log.Debug("stale pong actually mined, leaving for processPongs",
			zap.String("pingHash", ex.PingHash), zap.String("pongHash", ex.PongHash))
		return nil
	}

	bump := CalculateBumpFees(match.Tx.MaxFee, match.Tx.PriorityFee, current.MaxFee, current.PriorityFee)
	if bump == nil {
		r.Log.Debug("stale pong fees already competitive, not bumping",
			zap.String("pingHash", ex.PingHash), zap.String("pongHash", ex.PongHash))
		return nil
	}

	if err := r.Gateway.BumpTransactionFees(ctx, match.Tx, gateway.FeeData{MaxFee: bump.MaxFee, PriorityFee: bump.PriorityFee}, match.ProviderName); err != nil {
		return fmt.Errorf("reconciler: bump fees for %s: %w", ex.PongHash, err)
	}

	if err := r.Store.PutPongIssued(ex.PingHash, ex.PingBlock, ex.PongHash, *ex.PongNonce, r.now()); err != nil {
		return fmt.Errorf("reconciler: restart stale timer after bump for %s: %w", ex.PingHash, err)
	}
	if r.Metrics != nil {
		r.Metrics.StaleReconciliations.Inc()
	}
	return nil
}

func (r *Reconciler) resubmit(ctx context.Context, ex exchange.Exchange) error {
	result, err := r.Gateway.Pong(ctx, ex.PingHash, gateway.PongOptions{})
	if err != nil {
		return fmt.Errorf("reconciler: resubmit dropped pong for %s: %w", ex.PingHash, err)
	}
	if err := r.Store.PutPongIssued(ex.PingHash, ex.PingBlock, result.PongHash, result.Nonce, r.now()); err != nil {
		return fmt.Errorf("reconciler: persist resubmitted pong for %s: %w", ex.PingHash, err)
	}
	if r.Metrics != nil {
		r.Metrics.StaleReconciliations.Inc()
	}
	r.Log.Info("resubmitted dropped pong",
		zap.String("pingHash", ex.PingHash), zap.String("newPongHash", result.PongHash))
	return nil
}
