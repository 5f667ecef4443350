// Package runloop implements the outermost iterate-then-sleep cycle:
// repeat iterate() until shutdown is requested, cooperating with graceful
// stop so an in-flight iteration always finishes before the process exits.
package runloop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
	"github.com/fcanela/ping-pong-bot/internal/observability"
	"github.com/fcanela/ping-pong-bot/internal/planner"
)

// Store is the subset of internal/store.Store the run loop needs directly
// (iteration persistence; exchange persistence is the executor's concern).
type Store interface {
	GetIteration() (*exchange.Iteration, error)
	SetIteration(it exchange.Iteration) error
}

// Gateway is the minimal surface the run loop needs directly, to ask the
// chain for its current height before planning.
type Gateway interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
}

// Executor runs every phase of one iteration.
type Executor interface {
	Run(ctx context.Context, it exchange.Iteration) error
}

// Loop ties the planner, store, gateway and executor together into the
// iterate-then-sleep cycle.
type Loop struct {
	Store    Store
	Gateway  Gateway
	Executor Executor
	Planner  planner.Config
	Cooldown time.Duration
	Log      *zap.Logger
	Metrics  *observability.Metrics // optional
	Health   *observability.Health  // optional

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(st Store, gw Gateway, ex Executor, plannerCfg planner.Config, cooldown time.Duration, log *zap.Logger) *Loop {
	return &Loop{
		Store:    st,
		Gateway:  gw,
		Executor: ex,
		Planner:  plannerCfg,
		Cooldown: cooldown,
		Log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run blocks, repeating iterate-then-sleep, until Stop is called or ctx is
// cancelled. It always lets the in-flight Iterate finish before returning.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.doneCh)

	for {
		if err := l.Iterate(ctx); err != nil {
			l.Log.Error("iteration failed, will recover on next tick", zap.Error(err))
		}

		select {
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.Cooldown):
		}
	}
}

// Stop requests a graceful halt: the current iteration (if any) finishes,
// then Run returns instead of sleeping again. Stop blocks until Run has
// actually returned or ctx is cancelled first.
func (l *Loop) Stop(ctx context.Context) error {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}

	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Iterate runs exactly one tick: plan, persist Started, execute, persist
// Completed. A Skip from the planner is a no-op tick.
func (l *Loop) Iterate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if l.Metrics != nil {
			l.Metrics.IterationDuration.Observe(time.Since(start).Seconds())
		}
		if l.Health != nil && err != nil {
			l.Health.ReportFailure()
		}
	}()

	previous, err := l.Store.GetIteration()
	if err != nil {
		return fmt.Errorf("runloop: load previous iteration: %w", err)
	}

	head, err := l.Gateway.CurrentBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("runloop: fetch chain head: %w", err)
	}

	next, ok := planner.Plan(previous, head, l.Planner)
	if !ok {
		l.Log.Debug("planner returned skip, nothing to do this tick")
		if l.Health != nil {
			// Plan never skips on cold start, so previous is set here.
			l.Health.ReportSuccess(previous.Type == exchange.IterationRecoveryStart || previous.Type == exchange.IterationRecovery)
		}
		return nil
	}

	if err := l.Store.SetIteration(next); err != nil {
		return fmt.Errorf("runloop: persist started iteration: %w", err)
	}

	if err := l.Executor.Run(ctx, next); err != nil {
		if l.Metrics != nil {
			l.Metrics.IterationFailures.Inc()
		}
		return fmt.Errorf("runloop: execute iteration: %w", err)
	}

	completed := next.WithState(exchange.IterationCompleted)
	if err := l.Store.SetIteration(completed); err != nil {
		return fmt.Errorf("runloop: persist completed iteration: %w", err)
	}
	if l.Health != nil {
		l.Health.ReportSuccess(next.Type != exchange.IterationNormal)
	}
	return nil
}
