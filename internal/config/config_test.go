package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func load(t *testing.T, args []string) (*Config, error) {
	t.Helper()
	fs := BuildFlagSet()
	v, err := BuildViper(fs, args)
	require.NoError(t, err)
	return BuildConfig(v)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := load(t, []string{
		"--contract-address=0x00000000000000000000000000000000000000aa",
		"--private-key=0000000000000000000000000000000000000000000000000000000000bbbb",
		"--rpc-url=https://rpc.example.com",
		"--starting-block=1",
	})
	require.NoError(t, err)

	require.Equal(t, uint64(20), cfg.ConfirmationBlocks)
	require.Equal(t, uint64(1000), cfg.MaxBlocksBatchSize)
	require.Equal(t, float64(3), cfg.ProvidersRPS)
	require.Empty(t, cfg.SecondaryProviders)
}

func TestLoadRejectsMissingContractAddress(t *testing.T) {
	_, err := load(t, []string{
		"--private-key=0000000000000000000000000000000000000000000000000000000000bbbb",
		"--rpc-url=https://rpc.example.com",
	})
	require.Error(t, err)
}

func TestLoadRejectsInvalidContractAddress(t *testing.T) {
	_, err := load(t, []string{
		"--contract-address=not-an-address",
		"--private-key=0000000000000000000000000000000000000000000000000000000000bbbb",
		"--rpc-url=https://rpc.example.com",
	})
	require.Error(t, err)
}

func TestLoadIgnoresDisabledSecondaryProviders(t *testing.T) {
	cfg, err := load(t, []string{
		"--contract-address=0x00000000000000000000000000000000000000aa",
		"--private-key=0000000000000000000000000000000000000000000000000000000000bbbb",
		"--rpc-url=https://rpc.example.com",
		"--starting-block=1",
		"--provider2-name=-",
		"--provider2-url=-",
	})
	require.NoError(t, err)
	require.Empty(t, cfg.SecondaryProviders)
}

func TestLoadAcceptsSecondaryProvider(t *testing.T) {
	cfg, err := load(t, []string{
		"--contract-address=0x00000000000000000000000000000000000000aa",
		"--private-key=0000000000000000000000000000000000000000000000000000000000bbbb",
		"--rpc-url=https://rpc.example.com",
		"--starting-block=1",
		"--provider2-name=alchemy",
		"--provider2-url=https://alchemy.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "https://alchemy.example.com", cfg.SecondaryProviders["alchemy"])
}
