package reconciler

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateBumpFeesTenPercentFloorBinds(t *testing.T) {
	bump := CalculateBumpFees(big.NewInt(11), big.NewInt(3), big.NewInt(12), big.NewInt(6))
	require.NotNil(t, bump)
	require.Equal(t, big.NewInt(13), bump.MaxFee)
	require.Equal(t, big.NewInt(6), bump.PriorityFee)
}

func TestCalculateBumpFeesNoReplacementWhenAlreadyCompetitive(t *testing.T) {
	bump := CalculateBumpFees(big.NewInt(20), big.NewInt(10), big.NewInt(12), big.NewInt(6))
	require.Nil(t, bump)
}

func TestCalculateBumpFeesExactlyEqualIsNoReplacement(t *testing.T) {
	bump := CalculateBumpFees(big.NewInt(12), big.NewInt(6), big.NewInt(12), big.NewInt(6))
	require.Nil(t, bump)
}
