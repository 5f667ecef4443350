package gateway

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// provider bundles one RPC endpoint's clients with the token-bucket limiter
// that gates every call issued through it.
type provider struct {
	name string
	eth  *ethclient.Client
	rpc  *rpc.Client
	lim  *rate.Limiter
}

func newProvider(name, url string, rps float64) (*provider, error) {
	rc, err := rpc.Dial(url)
	if err != nil {
		return nil, err
	}
	// Burst of 1: strict minimum inter-call spacing rather than bursty
	// token accumulation.
	return &provider{
		name: name,
		eth:  ethclient.NewClient(rc),
		rpc:  rc,
		lim:  rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (p *provider) wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

func (p *provider) close() {
	p.rpc.Close()
}
