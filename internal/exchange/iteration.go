package exchange

// IterationType discriminates the four iteration shapes described in spec.
type IterationType string

const (
	IterationNormal        IterationType = "NORMAL"
	IterationRecoveryStart IterationType = "RECOVERY_START"
	IterationRecovery      IterationType = "RECOVERY"
	IterationRecoveryEnd   IterationType = "RECOVERY_END"
)

// IterationState discriminates whether the side effects of an iteration have
// all landed yet.
type IterationState string

const (
	IterationStarted   IterationState = "STARTED"
	IterationCompleted IterationState = "COMPLETED"
)

// Iteration is the descriptor of one pass over a block range, or of a
// phase-transition marker (RecoveryStart/RecoveryEnd). At most one
// Iteration exists at any time; it is rewritten in place.
type Iteration struct {
	Type  IterationType  `json:"type"`
	State IterationState `json:"state"`

	// ToBlock is present on every iteration type.
	ToBlock uint64 `json:"toBlock"`

	// FromBlock is present on Normal and Recovery only.
	FromBlock *uint64 `json:"fromBlock,omitempty"`

	// RecoveryUntilBlock is present on Recovery only: the chain head
	// captured when recovery began.
	RecoveryUntilBlock *uint64 `json:"recoveryUntilBlock,omitempty"`
}

// HasBlockRange reports whether this iteration carries a fromBlock..toBlock
// range to scan (Normal and Recovery do; RecoveryStart/RecoveryEnd don't).
func (it Iteration) HasBlockRange() bool {
	return it.Type == IterationNormal || it.Type == IterationRecovery
}

// WithState returns a copy of it with State set to s, leaving other fields
// as-is. Used to mint the Completed write once all phases have succeeded.
func (it Iteration) WithState(s IterationState) Iteration {
	it.State = s
	return it
}
