package core

import (
	"errors"
	"fmt"
)

// Outcome categorises a StrategyResult. Callers branch on it to decide whether
// to try again on a later round.
type Outcome string

const (
	OutcomeMaxBidReached             Outcome = "max_bid_reached"
	OutcomeMinNextBidExceedsMax      Outcome = "min_next_bid_exceeds_max"
	OutcomeBalanceNotAboveCurrentBid Outcome = "balance_not_above_current_bid"
	OutcomeBalanceBelowMinNextBid    Outcome = "balance_below_min_next_bid"
	OutcomeAllowanceTooLow           Outcome = "allowance_too_low"
	OutcomeBidPlaced                 Outcome = "bid_placed"
	OutcomeBidFailed                 Outcome = "bid_failed"
)

// Attempted reports whether a bid was submitted for this outcome.
func (o Outcome) Attempted() bool {
	return o == OutcomeBidPlaced || o == OutcomeBidFailed
}

// DecisionInputs records the values a decision was based on. Balance and
// Allowance are nil when evaluation stopped before they were queried.
type DecisionInputs struct {
	CurrentBid Amount  `json:"current_bid"`
	MinNextBid Amount  `json:"min_next_bid"`
	MaxBid     Amount  `json:"max_bid"`
	Balance    *Amount `json:"balance,omitempty"`
	Allowance  *Amount `json:"allowance,omitempty"`
}

// StrategyResult is the report of a single decision.
type StrategyResult struct {
	Outcome Outcome        `json:"outcome"`
	Message string         `json:"message"`
	Bid     *Amount        `json:"bid,omitempty"` // set only when a bid was submitted
	Inputs  DecisionInputs `json:"inputs"`

	// Err holds the submission error, if any, behind OutcomeBidFailed.
	Err error `json:"-"`
}

// Placed reports whether a bid was submitted and accepted.
func (r StrategyResult) Placed() bool {
	return r.Outcome == OutcomeBidPlaced
}

func (r StrategyResult) String() string {
	return r.Message
}

// ErrInvariantViolation marks internal-consistency failures. Errors of this
// kind mean the arithmetic or the auction parameters are broken and no bid may
// be submitted.
var ErrInvariantViolation = errors.New("bid decision invariant violated")

// InvariantError describes which invariant failed and with what values.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", ErrInvariantViolation, e.Invariant, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func invariantError(invariant, format string, args ...any) *InvariantError {
	return &InvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}
