// Package gateway is the chain gateway the executor consumes: an
// abstraction over RPC calls, fee estimation, mempool inspection, and
// transaction submission. The interface is small and synchronous by
// design — every method may block on rate limiting or network I/O, and
// the executor treats each call as a single awaitable operation
// regardless of what happens underneath.
package gateway

import (
	"context"
	"math/big"
)

// PingLog is one finalized Ping() log record.
type PingLog struct {
	TxHash      string
	BlockNumber uint64
}

// PongLog is one finalized Pong(pingHash) log record.
type PongLog struct {
	TxHash      string
	BlockNumber uint64
	PingHash    string
}

// Tx is the subset of an on-chain transaction the bot needs.
type Tx struct {
	Hash        string
	From        string
	To          string
	Data        []byte
	Nonce       uint64
	MaxFee      *big.Int
	PriorityFee *big.Int
	BlockNumber *uint64 // nil while pending
}

// FeeData is a cached EIP-1559 fee estimate.
type FeeData struct {
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// PongResult is the outcome of submitting a pong transaction.
type PongResult struct {
	PongHash string
	Nonce    uint64
}

// MempoolMatch is a transaction found in a provider's pending pool.
type MempoolMatch struct {
	ProviderName string
	Tx           Tx
}

// MempoolPong is one of the bot's own pongs discovered via a pending-block
// mempool sweep during recovery.
type MempoolPong struct {
	PingHash string
	// PingBlock is nil: a pending-block mempool sweep observes our own
	// pong transaction, which carries no information about which block
	// the ping it answers landed in.
	PingBlock *uint64
	PongHash  string
	PongNonce uint64
}

// PongOptions configures a pong submission. A nil Nonce means "fetch a
// fresh one from the wallet provider", used by the stale reconciler when
// reissuing a dropped transaction.
type PongOptions struct {
	Nonce *uint64
}

// Gateway is the full set of chain operations the core depends on, one
// method per distinct operation the bot performs against the chain.
type Gateway interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	GetPings(ctx context.Context, fromBlock, toBlock uint64) ([]PingLog, error)
	GetPongs(ctx context.Context, fromBlock, toBlock uint64) ([]PongLog, error)
	GetTransaction(ctx context.Context, txHash string) (*Tx, error)

	WalletAddress() string
	WalletNonce(ctx context.Context) (uint64, error)

	RefreshFeeData(ctx context.Context) error
	CurrentFeeData() FeeData

	Pong(ctx context.Context, pingHash string, opts PongOptions) (PongResult, error)

	SearchMempoolTransaction(ctx context.Context, txHash string) (*MempoolMatch, error)
	BumpTransactionFees(ctx context.Context, staleTx Tx, newFees FeeData, providerName string) error
	ScanMyMempoolPongs(ctx context.Context) ([]MempoolPong, error)
}
