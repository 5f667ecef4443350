// Package store implements durable exchange/iteration persistence on top
// of github.com/cockroachdb/pebble, an ordered embedded KV engine.
//
// Pebble has no native buckets, so the two logical namespaces are
// implemented as key prefixes:
//
//	iterKey                -> the singleton iteration record
//	exchPrefix + pingHash  -> one exchange record
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/fcanela/ping-pong-bot/internal/exchange"
)

var (
	iterKey    = []byte("iter:")
	exchPrefix = []byte("exch:")
)

// Store is the durable exchange/iteration store. The zero value is not
// usable; construct with Open.
type Store struct {
	db     *pebble.DB
	closed bool
}

// Open opens (creating if necessary) the pebble database rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and releases the database handle. Idempotent: calling it a
// second time after a successful first call is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func exchKey(pingHash string) []byte {
	return append(append([]byte{}, exchPrefix...), []byte(pingHash)...)
}

func (s *Store) writeExchange(e exchange.Exchange) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("store: marshal exchange %s: %w", e.PingHash, err)
	}
	if err := s.db.Set(exchKey(e.PingHash), buf, pebble.Sync); err != nil {
		return fmt.Errorf("store: put exchange %s: %w", e.PingHash, err)
	}
	return nil
}

// GetIteration returns the current iteration singleton, or nil if none has
// ever been written (cold start).
func (s *Store) GetIteration() (*exchange.Iteration, error) {
	v, closer, err := s.db.Get(iterKey)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get iteration: %w", err)
	}
	defer closer.Close()

	var it exchange.Iteration
	if err := json.Unmarshal(v, &it); err != nil {
		return nil, fmt.Errorf("store: unmarshal iteration: %w", err)
	}
	return &it, nil
}

// SetIteration overwrites the iteration singleton.
func (s *Store) SetIteration(it exchange.Iteration) error {
	buf, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("store: marshal iteration: %w", err)
	}
	if err := s.db.Set(iterKey, buf, pebble.Sync); err != nil {
		return fmt.Errorf("store: set iteration: %w", err)
	}
	return nil
}

// GetExchange returns the exchange for pingHash, or nil if none exists.
func (s *Store) GetExchange(pingHash string) (*exchange.Exchange, error) {
	v, closer, err := s.db.Get(exchKey(pingHash))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get exchange %s: %w", pingHash, err)
	}
	defer closer.Close()

	var e exchange.Exchange
	if err := json.Unmarshal(v, &e); err != nil {
		return nil, fmt.Errorf("store: unmarshal exchange %s: %w", pingHash, err)
	}
	return &e, nil
}

// PutPingDetected writes a Detected record. It refuses to downgrade an
// existing non-Detected record, satisfying the forward-only invariant.
func (s *Store) PutPingDetected(pingHash string, pingBlock uint64) error {
	existing, err := s.GetExchange(pingHash)
	if err != nil {
		return err
	}
	next := exchange.Detected(pingHash, pingBlock)
	if existing != nil && !existing.CanTransitionTo(next.State) {
		return nil
	}
	return s.writeExchange(next)
}

// PutPongIssued writes a PongIssued record. pongTimestamp may be the zero
// time, in which case it defaults to now.
func (s *Store) PutPongIssued(pingHash string, pingBlock *uint64, pongHash string, pongNonce uint64, pongTimestamp time.Time) error {
	return s.writeExchange(exchange.PongIssued(pingHash, pingBlock, pongHash, pongNonce, pongTimestamp))
}

// PutCompletedExchange writes a Completed record.
func (s *Store) PutCompletedExchange(pingHash string, pingBlock *uint64, pongHash string, pongBlock uint64, pongNonce *uint64, pongTimestamp *time.Time) error {
	return s.writeExchange(exchange.Completed(pingHash, pingBlock, pongHash, pongBlock, pongNonce, pongTimestamp))
}

func (s *Store) scanExchanges(match func(exchange.Exchange) bool) ([]exchange.Exchange, error) {
	upper := append(append([]byte{}, exchPrefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: exchPrefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan exchanges: %w", err)
	}
	defer iter.Close()

	var out []exchange.Exchange
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), exchPrefix) {
			continue
		}
		var e exchange.Exchange
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("store: unmarshal exchange during scan: %w", err)
		}
		if match(e) {
			out = append(out, e)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: scan exchanges: %w", err)
	}
	return out, nil
}

// GetPingDetectedExchanges returns every exchange in the Detected state, in
// key order.
func (s *Store) GetPingDetectedExchanges() ([]exchange.Exchange, error) {
	return s.scanExchanges(func(e exchange.Exchange) bool { return e.State == exchange.StateDetected })
}

// GetStalePongIssuedExchanges returns every PongIssued exchange whose
// pongTimestamp is at least staleAfter behind now.
func (s *Store) GetStalePongIssuedExchanges(staleAfter time.Duration, now time.Time) ([]exchange.Exchange, error) {
	return s.scanExchanges(func(e exchange.Exchange) bool {
		if e.State != exchange.StatePongIssued || e.PongTimestamp == nil {
			return false
		}
		return now.Sub(*e.PongTimestamp) >= staleAfter
	})
}

// RemoveCompletedExchanges deletes every Completed exchange in one atomic
// batch and returns what was removed.
func (s *Store) RemoveCompletedExchanges() ([]exchange.Exchange, error) {
	completed, err := s.scanExchanges(func(e exchange.Exchange) bool { return e.State == exchange.StateCompleted })
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return completed, nil
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, e := range completed {
		if err := batch.Delete(exchKey(e.PingHash), nil); err != nil {
			return nil, fmt.Errorf("store: delete completed exchange %s: %w", e.PingHash, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("store: commit completed exchange deletes: %w", err)
	}
	return completed, nil
}
