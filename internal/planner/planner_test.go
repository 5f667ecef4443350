package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
)

func cfg() Config {
	return Config{ConfirmationBlocks: 20, MaxBlocksBatchSize: 1000, StartingBlock: 500}
}

func ptr(v uint64) *uint64 { return &v }

func TestPlanColdStartEntersRecoveryStart(t *testing.T) {
	it, ok := Plan(nil, 10_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecoveryStart, it.Type)
	require.Equal(t, uint64(499), it.ToBlock)
}

func TestPlanCrashMidNormalIterationRestartsRecovery(t *testing.T) {
	previous := &exchange.Iteration{
		Type:      exchange.IterationNormal,
		State:     exchange.IterationStarted,
		FromBlock: ptr(600),
		ToBlock:   700,
	}
	it, ok := Plan(previous, 10_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecoveryStart, it.Type)
	require.Equal(t, uint64(599), it.ToBlock)
}

func TestPlanCrashMidRecoveryStartRestartsFromSameToBlock(t *testing.T) {
	previous := &exchange.Iteration{
		Type:    exchange.IterationRecoveryStart,
		State:   exchange.IterationStarted,
		ToBlock: 499,
	}
	it, ok := Plan(previous, 10_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecoveryStart, it.Type)
	require.Equal(t, uint64(499), it.ToBlock)
}

func TestPlanRecoveryWindowFullyScannedEndsRecovery(t *testing.T) {
	previous := &exchange.Iteration{
		Type:               exchange.IterationRecovery,
		State:              exchange.IterationCompleted,
		FromBlock:          ptr(9001),
		ToBlock:            9980,
		RecoveryUntilBlock: ptr(9980),
	}
	it, ok := Plan(previous, 10_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecoveryEnd, it.Type)
	require.Equal(t, uint64(9980), it.ToBlock)
}

func TestPlanSkipsWhenNoNewConfirmedBlocks(t *testing.T) {
	previous := &exchange.Iteration{
		Type:      exchange.IterationNormal,
		State:     exchange.IterationCompleted,
		FromBlock: ptr(9001),
		ToBlock:   9980,
	}
	it, ok := Plan(previous, 9_999, cfg())
	require.False(t, ok)
	require.Equal(t, exchange.Iteration{}, it)
}

func TestPlanClampsBatchToMaxBlocksBatchSize(t *testing.T) {
	previous := &exchange.Iteration{
		Type:      exchange.IterationNormal,
		State:     exchange.IterationCompleted,
		FromBlock: ptr(1),
		ToBlock:   499,
	}
	c := cfg()
	c.MaxBlocksBatchSize = 100
	it, ok := Plan(previous, 1_000_000, c)
	require.True(t, ok)
	require.Equal(t, exchange.IterationNormal, it.Type)
	require.Equal(t, uint64(500), *it.FromBlock)
	require.Equal(t, uint64(600), it.ToBlock)
}

func TestPlanContinuesRecoveryUntilHeadCapturedAtStart(t *testing.T) {
	previous := &exchange.Iteration{
		Type:               exchange.IterationRecovery,
		State:              exchange.IterationCompleted,
		FromBlock:          ptr(501),
		ToBlock:            1500,
		RecoveryUntilBlock: ptr(9980),
	}
	it, ok := Plan(previous, 20_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecovery, it.Type)
	require.Equal(t, uint64(1501), *it.FromBlock)
	require.Equal(t, uint64(9980), *it.RecoveryUntilBlock)
}

func TestPlanRecoveryStartTransitionsIntoRecoveryCapturingHead(t *testing.T) {
	previous := &exchange.Iteration{
		Type:    exchange.IterationRecoveryStart,
		State:   exchange.IterationCompleted,
		ToBlock: 499,
	}
	it, ok := Plan(previous, 10_000, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationRecovery, it.Type)
	require.Equal(t, uint64(500), *it.FromBlock)
	require.Equal(t, uint64(1500), it.ToBlock)
	require.Equal(t, uint64(10_000), *it.RecoveryUntilBlock)
}

func TestPlanNormalOperationAfterRecoveryEnd(t *testing.T) {
	previous := &exchange.Iteration{
		Type:    exchange.IterationRecoveryEnd,
		State:   exchange.IterationCompleted,
		ToBlock: 9980,
	}
	it, ok := Plan(previous, 10_010, cfg())
	require.True(t, ok)
	require.Equal(t, exchange.IterationNormal, it.Type)
	require.Equal(t, uint64(9981), *it.FromBlock)
	require.Equal(t, uint64(9990), it.ToBlock)
}
