package reconciler

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
	"github.com/fcanela/ping-pong-bot/internal/gateway"
)

func noopLogger() *zap.Logger { return zap.NewNop() }

type fakeGateway struct {
	gateway.Gateway // embed to satisfy the interface; override what's needed

	fee           gateway.FeeData
	mempoolMatch  *gateway.MempoolMatch
	pongCalls     int
	bumpCalls     int
	bumpedFees    gateway.FeeData
	pongResult    gateway.PongResult
}

func (f *fakeGateway) RefreshFeeData(ctx context.Context) error { return nil }
func (f *fakeGateway) CurrentFeeData() gateway.FeeData          { return f.fee }
func (f *fakeGateway) SearchMempoolTransaction(ctx context.Context, txHash string) (*gateway.MempoolMatch, error) {
	return f.mempoolMatch, nil
}
func (f *fakeGateway) BumpTransactionFees(ctx context.Context, staleTx gateway.Tx, newFees gateway.FeeData, providerName string) error {
	f.bumpCalls++
	f.bumpedFees = newFees
	return nil
}
func (f *fakeGateway) Pong(ctx context.Context, pingHash string, opts gateway.PongOptions) (gateway.PongResult, error) {
	f.pongCalls++
	return f.pongResult, nil
}

type fakeStore struct {
	stale   []exchange.Exchange
	issued  []exchange.Exchange
}

func (s *fakeStore) GetStalePongIssuedExchanges(staleAfter time.Duration, now time.Time) ([]exchange.Exchange, error) {
	return s.stale, nil
}

func (s *fakeStore) PutPongIssued(pingHash string, pingBlock *uint64, pongHash string, pongNonce uint64, pongTimestamp time.Time) error {
	s.issued = append(s.issued, exchange.PongIssued(pingHash, pingBlock, pongHash, pongNonce, pongTimestamp))
	return nil
}

func ptr(v uint64) *uint64 { return &v }

func TestProcessStalePongsResubmitsWhenDropped(t *testing.T) {
	ex := exchange.PongIssued("0xping", ptr(1), "0xoldpong", 5, time.Now().Add(-time.Hour))
	st := &fakeStore{stale: []exchange.Exchange{ex}}
	gw := &fakeGateway{
		fee:          gateway.FeeData{MaxFee: big.NewInt(100), PriorityFee: big.NewInt(10)},
		mempoolMatch: nil,
		pongResult:   gateway.PongResult{PongHash: "0xnewpong", Nonce: 7},
	}

	r := New(gw, st, 15*time.Minute, noopLogger())
	require.NoError(t, r.ProcessStalePongs(context.Background()))

	require.Equal(t, 1, gw.pongCalls)
	require.Len(t, st.issued, 1)
	require.Equal(t, "0xnewpong", st.issued[0].PongHash)
	require.Equal(t, uint64(7), *st.issued[0].PongNonce)
}

func TestProcessStalePongsDoesNothingWhenMined(t *testing.T) {
	ex := exchange.PongIssued("0xping", ptr(1), "0xoldpong", 5, time.Now().Add(-time.Hour))
	st := &fakeStore{stale: []exchange.Exchange{ex}}
	mined := uint64(99)
	gw := &fakeGateway{
		fee: gateway.FeeData{MaxFee: big.NewInt(100), PriorityFee: big.NewInt(10)},
		mempoolMatch: &gateway.MempoolMatch{
			ProviderName: "primary",
			Tx:           gateway.Tx{BlockNumber: &mined},
		},
	}

	r := New(gw, st, 15*time.Minute, noopLogger())
	require.NoError(t, r.ProcessStalePongs(context.Background()))

	require.Equal(t, 0, gw.pongCalls)
	require.Equal(t, 0, gw.bumpCalls)
	require.Empty(t, st.issued)
}

func TestProcessStalePongsBumpsFeesWhenUnminedAndBehind(t *testing.T) {
	ex := exchange.PongIssued("0xping", ptr(1), "0xoldpong", 5, time.Now().Add(-time.Hour))
	st := &fakeStore{stale: []exchange.Exchange{ex}}
	gw := &fakeGateway{
		fee: gateway.FeeData{MaxFee: big.NewInt(100), PriorityFee: big.NewInt(20)},
		mempoolMatch: &gateway.MempoolMatch{
			ProviderName: "primary",
			Tx:           gateway.Tx{Nonce: 5, MaxFee: big.NewInt(11), PriorityFee: big.NewInt(3)},
		},
	}

	r := New(gw, st, 15*time.Minute, noopLogger())
	require.NoError(t, r.ProcessStalePongs(context.Background()))

	require.Equal(t, 1, gw.bumpCalls)
	require.Len(t, st.issued, 1)
}
