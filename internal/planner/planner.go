// Package planner implements the pure state-transition function that maps
// (previous iteration, current chain head) to the next iteration to run, or
// a decision to skip this tick entirely. It performs no I/O.
package planner

import "github.com/fcanela/ping-pong-bot/internal/exchange"

// Config carries the tunables the planner needs. All are read once from
// process configuration and never change over the life of the process.
type Config struct {
	ConfirmationBlocks uint64
	MaxBlocksBatchSize uint64
	StartingBlock      uint64
}

// Plan computes the next iteration given the previous one (nil on cold
// start) and the current chain head. The second return value is false when
// the tick should be skipped (no new confirmed blocks to scan).
//
// Rules are evaluated in a fixed order; the first matching rule wins.
func Plan(previous *exchange.Iteration, head uint64, cfg Config) (exchange.Iteration, bool) {
	confirmedHead := saturatingSub(head, cfg.ConfirmationBlocks)

	// Rule 1: cold start.
	if previous == nil {
		return exchange.Iteration{
			Type:    exchange.IterationRecoveryStart,
			State:   exchange.IterationStarted,
			ToBlock: saturatingSub(cfg.StartingBlock, 1),
		}, true
	}

	// Rule 2: crash mid-iteration.
	if previous.State == exchange.IterationStarted {
		toBlock := previous.ToBlock
		if previous.FromBlock != nil {
			toBlock = saturatingSub(*previous.FromBlock, 1)
		}
		return exchange.Iteration{
			Type:    exchange.IterationRecoveryStart,
			State:   exchange.IterationStarted,
			ToBlock: toBlock,
		}, true
	}

	// Rule 3: recovery window fully scanned.
	if previous.Type == exchange.IterationRecovery &&
		previous.RecoveryUntilBlock != nil &&
		previous.ToBlock >= *previous.RecoveryUntilBlock {
		return exchange.Iteration{
			Type:    exchange.IterationRecoveryEnd,
			State:   exchange.IterationStarted,
			ToBlock: previous.ToBlock,
		}, true
	}

	// Rule 4: compute the next candidate range.
	fromBlock := previous.ToBlock + 1
	if confirmedHead < fromBlock {
		return exchange.Iteration{}, false
	}
	toBlock := confirmedHead
	if toBlock-fromBlock > cfg.MaxBlocksBatchSize {
		toBlock = fromBlock + cfg.MaxBlocksBatchSize
	}
	if toBlock < fromBlock+1 {
		return exchange.Iteration{}, false
	}

	// Rule 5: continuing recovery.
	if previous.Type == exchange.IterationRecovery || previous.Type == exchange.IterationRecoveryStart {
		until := head
		if previous.Type == exchange.IterationRecovery && previous.RecoveryUntilBlock != nil {
			until = *previous.RecoveryUntilBlock
		}
		return exchange.Iteration{
			Type:               exchange.IterationRecovery,
			State:              exchange.IterationStarted,
			FromBlock:          &fromBlock,
			ToBlock:            toBlock,
			RecoveryUntilBlock: &until,
		}, true
	}

	// Rule 6: normal operation.
	return exchange.Iteration{
		Type:      exchange.IterationNormal,
		State:     exchange.IterationStarted,
		FromBlock: &fromBlock,
		ToBlock:   toBlock,
	}, true
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
