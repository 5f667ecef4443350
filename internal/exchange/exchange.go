// Package exchange defines the persisted state machines that make up the
// bot's correctness argument: one Exchange per ping/pong pair, and a single
// Iteration descriptor describing the block range currently being scanned.
package exchange

import (
	"fmt"
	"time"
)

// State discriminates the lifecycle stage of an Exchange record.
type State string

const (
	StateDetected   State = "DETECTED"
	StatePongIssued State = "PONG_ISSUED"
	StateCompleted  State = "COMPLETED"
)

// Exchange is the lifecycle of one ping/pong pair, keyed by PingHash.
//
// Fields are a superset across all three states; which ones are meaningful
// is determined by State. PingBlock and PongTimestamp are pointers because
// recovery may learn of a Completed exchange without ever observing the
// original Ping or its detection time.
type Exchange struct {
	State State `json:"state"`

	PingHash  string  `json:"pingHash"`
	PingBlock *uint64 `json:"pingBlock,omitempty"`

	PongHash      string     `json:"pongHash,omitempty"`
	PongNonce     *uint64    `json:"pongNonce,omitempty"`
	PongTimestamp *time.Time `json:"pongTimestamp,omitempty"`
	PongBlock     *uint64    `json:"pongBlock,omitempty"`
}

// Detected builds a Detected-state exchange.
func Detected(pingHash string, pingBlock uint64) Exchange {
	return Exchange{
		State:     StateDetected,
		PingHash:  pingHash,
		PingBlock: &pingBlock,
	}
}

// PongIssued builds a PongIssued-state exchange. pongTimestamp defaults to
// now when the zero value is passed, matching the store's documented
// behavior for putPongIssued.
func PongIssued(pingHash string, pingBlock *uint64, pongHash string, pongNonce uint64, pongTimestamp time.Time) Exchange {
	if pongTimestamp.IsZero() {
		pongTimestamp = time.Now().UTC()
	}
	return Exchange{
		State:         StatePongIssued,
		PingHash:      pingHash,
		PingBlock:     pingBlock,
		PongHash:      pongHash,
		PongNonce:     &pongNonce,
		PongTimestamp: &pongTimestamp,
	}
}

// Completed builds a Completed-state exchange.
func Completed(pingHash string, pingBlock *uint64, pongHash string, pongBlock uint64, pongNonce *uint64, pongTimestamp *time.Time) Exchange {
	return Exchange{
		State:         StateCompleted,
		PingHash:      pingHash,
		PingBlock:     pingBlock,
		PongHash:      pongHash,
		PongBlock:     &pongBlock,
		PongNonce:     pongNonce,
		PongTimestamp: pongTimestamp,
	}
}

// rank orders states for the forward-only transition check: Detected < PongIssued < Completed.
func (s State) rank() int {
	switch s {
	case StateDetected:
		return 0
	case StatePongIssued:
		return 1
	case StateCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from the receiver's state to next
// is a forward-only transition, or a same-state overwrite (idempotent
// re-application of a phase). A Completed record can never be demoted.
func (e Exchange) CanTransitionTo(next State) bool {
	return next.rank() >= e.State.rank()
}

func (e Exchange) String() string {
	return fmt.Sprintf("Exchange{pingHash=%s state=%s pongHash=%s}", e.PingHash, e.State, e.PongHash)
}
