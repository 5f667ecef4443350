package gateway

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Config describes how to reach the chain and which wallet/contract this
// bot answers on behalf of. PrimaryURL is used for all authoritative reads
// and for submitting new pongs; ProviderURLs are additional mempool
// vantage points used by SearchMempoolTransaction/ScanMyMempoolPongs, and by
// BumpTransactionFees when the stale transaction was found through one of
// them (disabled providers are expected to have been filtered out by the
// config layer before reaching here).
type Config struct {
	PrimaryName  string
	PrimaryURL   string
	ProviderURLs map[string]string // name -> url, additional mempool vantage points

	ContractAddress common.Address
	PrivateKeyHex   string
	ChainID         *big.Int
	ProvidersRPS    float64
	GasLimit        uint64
}

// Client is the ethclient-backed implementation of gateway.Gateway.
type Client struct {
	primary   *provider
	providers []*provider // primary + every configured secondary, for mempool fan-out

	contract common.Address
	privKey  *ecdsa.PrivateKey
	wallet   common.Address
	chainID  *big.Int
	signer   types.Signer
	gasLimit uint64

	log *zap.Logger

	feeMu sync.RWMutex
	fee   FeeData
}

// NewClient dials the primary provider and every configured secondary
// mempool provider.
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	privKey, err := crypto.HexToECDSA(cfg.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse private key: %w", err)
	}

	primary, err := newProvider(cfg.PrimaryName, cfg.PrimaryURL, cfg.ProvidersRPS)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial primary provider %s: %w", cfg.PrimaryName, err)
	}

	providers := []*provider{primary}
	for name, url := range cfg.ProviderURLs {
		p, err := newProvider(name, url, cfg.ProvidersRPS)
		if err != nil {
			return nil, fmt.Errorf("gateway: dial provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 100_000
	}

	return &Client{
		primary:   primary,
		providers: providers,
		contract:  cfg.ContractAddress,
		privKey:   privKey,
		wallet:    crypto.PubkeyToAddress(privKey.PublicKey),
		chainID:   cfg.ChainID,
		signer:    types.NewLondonSigner(cfg.ChainID),
		gasLimit:  gasLimit,
		log:       log,
	}, nil
}

// Close releases every dialed provider connection.
func (c *Client) Close() {
	for _, p := range c.providers {
		p.close()
	}
}

func (c *Client) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	if err := c.primary.wait(ctx); err != nil {
		return 0, err
	}
	return c.primary.eth.BlockNumber(ctx)
}

func (c *Client) filterLogs(ctx context.Context, fromBlock, toBlock uint64, topic common.Hash) ([]types.Log, error) {
	if err := c.primary.wait(ctx); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{topic}},
	}
	return c.primary.eth.FilterLogs(ctx, query)
}

func (c *Client) GetPings(ctx context.Context, fromBlock, toBlock uint64) ([]PingLog, error) {
	logs, err := c.filterLogs(ctx, fromBlock, toBlock, pingEventTopic)
	if err != nil {
		return nil, fmt.Errorf("gateway: get pings: %w", err)
	}
	out := make([]PingLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, PingLog{TxHash: l.TxHash.Hex(), BlockNumber: l.BlockNumber})
	}
	return out, nil
}

// GetPongs returns finalized Pong logs. The indexed pong argument (the ping
// hash it answers) is the log's second topic.
func (c *Client) GetPongs(ctx context.Context, fromBlock, toBlock uint64) ([]PongLog, error) {
	logs, err := c.filterLogs(ctx, fromBlock, toBlock, pongEventTopic)
	if err != nil {
		return nil, fmt.Errorf("gateway: get pongs: %w", err)
	}
	out := make([]PongLog, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			c.log.Warn("pong log missing indexed pingHash topic", zap.String("txHash", l.TxHash.Hex()))
			continue
		}
		out = append(out, PongLog{
			TxHash:      l.TxHash.Hex(),
			BlockNumber: l.BlockNumber,
			PingHash:    l.Topics[1].Hex(),
		})
	}
	return out, nil
}

func (c *Client) GetTransaction(ctx context.Context, txHash string) (*Tx, error) {
	hash, err := parseHash(txHash)
	if err != nil {
		return nil, err
	}
	if err := c.primary.wait(ctx); err != nil {
		return nil, err
	}
	tx, isPending, err := c.primary.eth.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("gateway: get transaction %s: %w", txHash, err)
	}

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return nil, fmt.Errorf("gateway: recover sender for %s: %w", txHash, err)
	}

	var blockNumber *uint64
	if !isPending {
		if err := c.primary.wait(ctx); err != nil {
			return nil, err
		}
		receipt, err := c.primary.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			bn := receipt.BlockNumber.Uint64()
			blockNumber = &bn
		}
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	return &Tx{
		Hash:        tx.Hash().Hex(),
		From:        from.Hex(),
		To:          to,
		Data:        tx.Data(),
		Nonce:       tx.Nonce(),
		MaxFee:      tx.GasFeeCap(),
		PriorityFee: tx.GasTipCap(),
		BlockNumber: blockNumber,
	}, nil
}

func (c *Client) WalletAddress() string {
	return c.wallet.Hex()
}

func (c *Client) WalletNonce(ctx context.Context) (uint64, error) {
	if err := c.primary.wait(ctx); err != nil {
		return 0, err
	}
	return c.primary.eth.PendingNonceAt(ctx, c.wallet)
}

func (c *Client) RefreshFeeData(ctx context.Context) error {
	if err := c.primary.wait(ctx); err != nil {
		return err
	}
	tip, err := c.primary.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("gateway: suggest tip cap: %w", err)
	}
	if err := c.primary.wait(ctx); err != nil {
		return err
	}
	header, err := c.primary.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("gateway: fetch head header: %w", err)
	}
	if header.BaseFee == nil {
		return fmt.Errorf("gateway: chain head has no EIP-1559 base fee")
	}

	maxFee := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), tip)

	c.feeMu.Lock()
	c.fee = FeeData{MaxFee: maxFee, PriorityFee: tip}
	c.feeMu.Unlock()
	return nil
}

func (c *Client) CurrentFeeData() FeeData {
	c.feeMu.RLock()
	defer c.feeMu.RUnlock()
	return c.fee
}

func (c *Client) Pong(ctx context.Context, pingHash string, opts PongOptions) (PongResult, error) {
	hash, err := parseHash(pingHash)
	if err != nil {
		return PongResult{}, err
	}

	nonce := opts.Nonce
	if nonce == nil {
		n, err := c.WalletNonce(ctx)
		if err != nil {
			return PongResult{}, err
		}
		nonce = &n
	}

	fee := c.CurrentFeeData()
	if fee.MaxFee == nil || fee.PriorityFee == nil {
		return PongResult{}, fmt.Errorf("gateway: pong %s: no cached fee data, call RefreshFeeData first", pingHash)
	}

	contract := c.contract
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     *nonce,
		GasTipCap: fee.PriorityFee,
		GasFeeCap: fee.MaxFee,
		Gas:       c.gasLimit,
		To:        &contract,
		Value:     big.NewInt(0),
		Data:      encodePongCalldata(hash),
	})

	signed, err := types.SignTx(tx, c.signer, c.privKey)
	if err != nil {
		return PongResult{}, fmt.Errorf("gateway: sign pong tx for %s: %w", pingHash, err)
	}

	if err := c.primary.wait(ctx); err != nil {
		return PongResult{}, err
	}
	if err := c.primary.eth.SendTransaction(ctx, signed); err != nil {
		return PongResult{}, fmt.Errorf("gateway: send pong tx for %s: %w", pingHash, err)
	}

	return PongResult{PongHash: signed.Hash().Hex(), Nonce: *nonce}, nil
}

func (c *Client) SearchMempoolTransaction(ctx context.Context, txHash string) (*MempoolMatch, error) {
	hash, err := parseHash(txHash)
	if err != nil {
		return nil, err
	}
	for _, p := range c.providers {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		tx, isPending, err := p.eth.TransactionByHash(ctx, hash)
		if err != nil || tx == nil || !isPending {
			continue
		}
		from, err := types.Sender(c.signer, tx)
		if err != nil {
			continue
		}
		to := ""
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		return &MempoolMatch{
			ProviderName: p.name,
			Tx: Tx{
				Hash:        tx.Hash().Hex(),
				From:        from.Hex(),
				To:          to,
				Data:        tx.Data(),
				Nonce:       tx.Nonce(),
				MaxFee:      tx.GasFeeCap(),
				PriorityFee: tx.GasTipCap(),
			},
		}, nil
	}
	return nil, nil
}

func (c *Client) BumpTransactionFees(ctx context.Context, staleTx Tx, newFees FeeData, providerName string) error {
	p := c.providerByName(providerName)
	if p == nil {
		return fmt.Errorf("gateway: bump fees: unknown provider %q", providerName)
	}

	to := common.HexToAddress(staleTx.To)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     staleTx.Nonce,
		GasTipCap: newFees.PriorityFee,
		GasFeeCap: newFees.MaxFee,
		Gas:       c.gasLimit,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      staleTx.Data,
	})
	signed, err := types.SignTx(tx, c.signer, c.privKey)
	if err != nil {
		return fmt.Errorf("gateway: sign fee-bump tx for nonce %d: %w", staleTx.Nonce, err)
	}
	if err := p.wait(ctx); err != nil {
		return err
	}
	if err := p.eth.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("gateway: send fee-bump tx for nonce %d via %s: %w", staleTx.Nonce, providerName, err)
	}
	return nil
}

func (c *Client) providerByName(name string) *provider {
	for _, p := range c.providers {
		if p.name == name {
			return p
		}
	}
	return nil
}
