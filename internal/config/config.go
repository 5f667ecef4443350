// Package config loads the bot's configuration once at process start:
// build a flag set, bind it and the environment into a viper instance,
// then validate into a typed Config.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Disabled is the sentinel value meaning "this optional field is off".
const Disabled = "-"

const envPrefix = "PINGPONG"

// Flag keys, mirrored 1:1 onto environment variables via viper's
// AutomaticEnv + key replacer.
const (
	keyDataPath           = "data-path"
	keyContractAddress    = "contract-address"
	keyPrivateKey         = "private-key"
	keyStartingBlock      = "starting-block"
	keyChainID            = "chain-id"
	keyRPCURL             = "rpc-url"
	keyProvider2Name      = "provider2-name"
	keyProvider2URL       = "provider2-url"
	keyProvider3Name      = "provider3-name"
	keyProvider3URL       = "provider3-url"
	keyConfirmationBlocks = "confirmation-blocks"
	keyStaleTimeoutMin    = "stale-pong-timeout-minutes"
	keyCooldownMin        = "cooldown-period-minutes"
	keyMaxBlocksBatch     = "max-blocks-batch-size"
	keyProvidersRPS       = "providers-rps"
	keyMetricsAddr        = "metrics-addr"
	keyShutdownTimeoutSec = "shutdown-timeout-seconds"
)

// Config is the fully validated, typed configuration the rest of the
// process is wired from.
type Config struct {
	DataPath string

	ContractAddress common.Address
	PrivateKeyHex   string
	StartingBlock   uint64
	ChainID         *big.Int

	PrimaryProviderName string
	PrimaryRPCURL       string
	SecondaryProviders  map[string]string // name -> url

	ConfirmationBlocks uint64
	StalePongTimeout   time.Duration
	CooldownPeriod     time.Duration
	MaxBlocksBatchSize uint64
	ProvidersRPS       float64

	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// BuildFlagSet declares every recognized flag with its default value.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("pingpongbot", pflag.ContinueOnError)

	fs.String(keyDataPath, "./data", "filesystem path for the store and logs")
	fs.String(keyContractAddress, "", "20-byte contract address emitting Ping/Pong (required)")
	fs.String(keyPrivateKey, "", "32-byte wallet private key, hex encoded (required)")
	fs.Uint64(keyStartingBlock, 0, "first block to ever scan (required)")
	fs.String(keyChainID, "1", "EVM chain id")
	fs.String(keyRPCURL, "", "primary JSON-RPC endpoint (required)")
	fs.String(keyProvider2Name, Disabled, "name of the second mempool provider, or \"-\" to disable")
	fs.String(keyProvider2URL, Disabled, "JSON-RPC endpoint of the second mempool provider, or \"-\" to disable")
	fs.String(keyProvider3Name, Disabled, "name of the third mempool provider, or \"-\" to disable")
	fs.String(keyProvider3URL, Disabled, "JSON-RPC endpoint of the third mempool provider, or \"-\" to disable")
	fs.Uint64(keyConfirmationBlocks, 20, "blocks behind head treated as final")
	fs.Uint64(keyStaleTimeoutMin, 15, "minutes before an unconfirmed pong is considered stale")
	fs.Uint64(keyCooldownMin, 2, "minutes to sleep between iterations")
	fs.Uint64(keyMaxBlocksBatch, 1000, "max blocks scanned per iteration")
	fs.Float64(keyProvidersRPS, 3, "RPC calls per second per provider")
	fs.String(keyMetricsAddr, "", "address to serve /metrics and /healthz on, empty disables")
	fs.Uint64(keyShutdownTimeoutSec, 300, "seconds to wait for a wedged iteration before forcing exit")

	return fs
}

// BuildViper binds fs, the environment (PINGPONG_ prefixed) and an optional
// ${DATA_PATH}/config.yaml into a single viper instance, then parses args.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("config: bind flags: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(v.GetString(keyDataPath))
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	return v, nil
}

// BuildConfig validates v into a Config, applying defaults and rejecting
// missing required fields.
func BuildConfig(v *viper.Viper) (*Config, error) {
	contractStr := v.GetString(keyContractAddress)
	if contractStr == "" {
		return nil, fmt.Errorf("config: %s is required", keyContractAddress)
	}
	if !common.IsHexAddress(contractStr) {
		return nil, fmt.Errorf("config: %s is not a valid 20-byte address: %q", keyContractAddress, contractStr)
	}

	privKey := v.GetString(keyPrivateKey)
	if privKey == "" {
		return nil, fmt.Errorf("config: %s is required", keyPrivateKey)
	}

	rpcURL := v.GetString(keyRPCURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("config: %s is required", keyRPCURL)
	}

	if !v.IsSet(keyStartingBlock) {
		return nil, fmt.Errorf("config: %s is required", keyStartingBlock)
	}
	startingBlock := v.GetUint64(keyStartingBlock)

	chainID, ok := new(big.Int).SetString(v.GetString(keyChainID), 10)
	if !ok {
		return nil, fmt.Errorf("config: %s is not a valid integer: %q", keyChainID, v.GetString(keyChainID))
	}

	secondary := map[string]string{}
	addProvider(secondary, v.GetString(keyProvider2Name), v.GetString(keyProvider2URL))
	addProvider(secondary, v.GetString(keyProvider3Name), v.GetString(keyProvider3URL))

	return &Config{
		DataPath:            v.GetString(keyDataPath),
		ContractAddress:     common.HexToAddress(contractStr),
		PrivateKeyHex:       strings.TrimPrefix(privKey, "0x"),
		StartingBlock:       startingBlock,
		ChainID:             chainID,
		PrimaryProviderName: "primary",
		PrimaryRPCURL:       rpcURL,
		SecondaryProviders:  secondary,
		ConfirmationBlocks:  v.GetUint64(keyConfirmationBlocks),
		StalePongTimeout:    time.Duration(v.GetUint64(keyStaleTimeoutMin)) * time.Minute,
		CooldownPeriod:      time.Duration(v.GetUint64(keyCooldownMin)) * time.Minute,
		MaxBlocksBatchSize:  v.GetUint64(keyMaxBlocksBatch),
		ProvidersRPS:        v.GetFloat64(keyProvidersRPS),
		MetricsAddr:         v.GetString(keyMetricsAddr),
		ShutdownTimeout:     time.Duration(v.GetUint64(keyShutdownTimeoutSec)) * time.Second,
	}, nil
}

// addProvider registers a secondary mempool provider unless either its name
// or URL is the "-" disabled sentinel.
func addProvider(dst map[string]string, name, url string) {
	if name == "" || url == "" || name == Disabled || url == Disabled {
		return
	}
	dst[name] = url
}
