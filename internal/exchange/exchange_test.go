package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetectedSetsPingBlock(t *testing.T) {
	ex := Detected("0xping1", 42)
	require.Equal(t, StateDetected, ex.State)
	require.Equal(t, uint64(42), *ex.PingBlock)
}

func TestPongIssuedDefaultsZeroTimestampToNow(t *testing.T) {
	ex := PongIssued("0xping1", nil, "0xpong1", 7, time.Time{})
	require.NotNil(t, ex.PongTimestamp)
	require.WithinDuration(t, time.Now().UTC(), *ex.PongTimestamp, time.Second)
}

func TestPongIssuedKeepsExplicitTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ex := PongIssued("0xping1", nil, "0xpong1", 7, ts)
	require.Equal(t, ts, *ex.PongTimestamp)
}

func TestCanTransitionToForwardOnly(t *testing.T) {
	detected := Detected("0xping1", 1)
	require.True(t, detected.CanTransitionTo(StateDetected))
	require.True(t, detected.CanTransitionTo(StatePongIssued))
	require.True(t, detected.CanTransitionTo(StateCompleted))
}

func TestCanTransitionToRejectsDemotion(t *testing.T) {
	completed := Completed("0xping1", nil, "0xpong1", 10, nil, nil)
	require.False(t, completed.CanTransitionTo(StateDetected))
	require.False(t, completed.CanTransitionTo(StatePongIssued))
	require.True(t, completed.CanTransitionTo(StateCompleted))
}

func TestPongIssuedCannotDowngradeToDetected(t *testing.T) {
	nonce := uint64(3)
	issued := PongIssued("0xping1", nil, "0xpong1", nonce, time.Now())
	require.False(t, issued.CanTransitionTo(StateDetected))
}
