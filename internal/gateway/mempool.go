package gateway

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pendingBlock is the minimal decoding of the eth_getBlockByNumber("pending",
// false) response: block hashes only, not full transaction bodies.
type pendingBlock struct {
	Transactions []common.Hash `json:"transactions"`
}

// ScanMyMempoolPongs sweeps every configured provider's pending block,
// looking for pongs this wallet has already broadcast but that the local
// store may not know about (recovery after a crash or DB wipe). Providers
// are queried concurrently; results are merged by pongHash, keeping the
// first provider's record (in provider order) and logging a warning when a
// later provider reports a different nonce for the same pongHash. Two
// different pongHashes for the same pingHash are both returned.
func (c *Client) ScanMyMempoolPongs(ctx context.Context) ([]MempoolPong, error) {
	results := make([][]MempoolPong, len(c.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.providers {
		i, p := i, p
		g.Go(func() error {
			found, err := c.scanProviderPendingPongs(gctx, p)
			if err != nil {
				c.log.Warn("mempool scan failed for provider", zap.String("provider", p.name), zap.Error(err))
				return nil // a single provider outage does not abort the scan
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]MempoolPong)
	seenNonce := make(map[string]uint64)
	for i, found := range results {
		providerName := c.providers[i].name
		for _, mp := range found {
			if prevNonce, ok := seenNonce[mp.PongHash]; ok && prevNonce != mp.PongNonce {
				c.log.Warn("providers disagree on pong nonce, keeping first seen",
					zap.String("pongHash", mp.PongHash),
					zap.String("provider", providerName),
					zap.Uint64("kept", prevNonce),
					zap.Uint64("reported", mp.PongNonce),
				)
				continue
			}
			if _, ok := merged[mp.PongHash]; !ok {
				merged[mp.PongHash] = mp
				seenNonce[mp.PongHash] = mp.PongNonce
			}
		}
	}

	out := make([]MempoolPong, 0, len(merged))
	for _, mp := range merged {
		out = append(out, mp)
	}
	return out, nil
}

func (c *Client) scanProviderPendingPongs(ctx context.Context, p *provider) ([]MempoolPong, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	var block pendingBlock
	if err := p.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", "pending", false); err != nil {
		return nil, fmt.Errorf("gateway: eth_getBlockByNumber(pending) via %s: %w", p.name, err)
	}

	var out []MempoolPong
	for _, hash := range block.Transactions {
		if err := p.wait(ctx); err != nil {
			return nil, err
		}
		tx, isPending, err := p.eth.TransactionByHash(ctx, hash)
		if err != nil || tx == nil || !isPending {
			continue
		}
		if tx.To() == nil || *tx.To() != c.contract {
			continue
		}
		from, err := types.Sender(c.signer, tx)
		if err != nil || from != c.wallet {
			continue
		}
		pingHash, ok := decodePongCalldata(tx.Data())
		if !ok {
			continue
		}
		out = append(out, MempoolPong{
			PingHash:  pingHash.Hex(),
			PongHash:  tx.Hash().Hex(),
			PongNonce: tx.Nonce(),
		})
	}
	return out, nil
}
