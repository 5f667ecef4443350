package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestIterationRoundTrip(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetIteration()
	require.NoError(t, err)
	require.Nil(t, got)

	from := uint64(10)
	it := exchange.Iteration{
		Type:      exchange.IterationNormal,
		State:     exchange.IterationStarted,
		FromBlock: &from,
		ToBlock:   20,
	}
	require.NoError(t, s.SetIteration(it))

	got, err = s.GetIteration()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, it, *got)
}

func TestPutPingDetectedRefusesDowngrade(t *testing.T) {
	s := openTestStore(t)
	const hash = "0xabc"

	require.NoError(t, s.PutPingDetected(hash, 1))
	require.NoError(t, s.PutPongIssued(hash, ptr(uint64(1)), "0xpong", 5, time.Now()))

	// A later re-detection (e.g. a replayed ping log) must not downgrade.
	require.NoError(t, s.PutPingDetected(hash, 1))

	got, err := s.GetExchange(hash)
	require.NoError(t, err)
	require.Equal(t, exchange.StatePongIssued, got.State)
}

func TestGetPingDetectedExchanges(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutPingDetected("0x1", 1))
	require.NoError(t, s.PutPingDetected("0x2", 2))
	require.NoError(t, s.PutPongIssued("0x3", ptr(uint64(3)), "0xpong3", 1, time.Now()))

	detected, err := s.GetPingDetectedExchanges()
	require.NoError(t, err)
	require.Len(t, detected, 2)
}

func TestGetStalePongIssuedExchanges(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.PutPongIssued("0x1", ptr(uint64(1)), "0xpong1", 1, now.Add(-time.Hour)))
	require.NoError(t, s.PutPongIssued("0x2", ptr(uint64(2)), "0xpong2", 2, now))

	stale, err := s.GetStalePongIssuedExchanges(15*time.Minute, now)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "0x1", stale[0].PingHash)
}

func TestRemoveCompletedExchanges(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutCompletedExchange("0x1", ptr(uint64(1)), "0xpong1", 10, ptr(uint64(1)), nil))
	require.NoError(t, s.PutPingDetected("0x2", 2))

	removed, err := s.RemoveCompletedExchanges()
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, "0x1", removed[0].PingHash)

	got, err := s.GetExchange("0x1")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.GetExchange("0x2")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func ptr[T any](v T) *T { return &v }
