package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHealthUnhealthyBeforeFirstSuccess(t *testing.T) {
	h := NewHealth()
	st := h.snapshot()
	require.False(t, st.Healthy)
	require.Nil(t, st.LastSuccess)
}

func TestHealthHealthyAfterSuccess(t *testing.T) {
	h := NewHealth()
	h.ReportSuccess(false)
	st := h.snapshot()
	require.True(t, st.Healthy)
	require.False(t, st.RecoveryMode)
}

func TestHealthTracksRecoveryMode(t *testing.T) {
	h := NewHealth()
	h.ReportSuccess(true)
	st := h.snapshot()
	require.True(t, st.RecoveryMode)
}

func TestHealthCountsConsecutiveFailures(t *testing.T) {
	h := NewHealth()
	h.ReportSuccess(false)
	h.ReportFailure()
	h.ReportFailure()
	st := h.snapshot()
	require.Equal(t, 2, st.ConsecutiveFailures)
}

func TestHealthBecomesUnhealthyAfterTimeout(t *testing.T) {
	h := NewHealth()
	h.ReportSuccess(false)

	old := now
	now = func() time.Time { return old().Add(unhealthyAfter + time.Minute) }
	defer func() { now = old }()

	st := h.snapshot()
	require.False(t, st.Healthy)
}
