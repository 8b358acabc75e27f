package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMaxPrice = errors.New("max price must be greater than zero")
	ErrInvalidStep     = errors.New("step must be between 0 and 1 (exclusive)")
)

const (
	msgMaxBidReached             = "Our maximum possible bid reached"
	msgMinNextBidExceedsMax      = "Minimal next bid exceeds our maximum possible bid"
	msgBalanceNotAboveCurrentBid = "Our available balance is less or equal to the current auction bid"
	msgBalanceBelowMinNextBid    = "Our available balance is below minimal next bid"
	msgAllowanceTooLow           = "Allowance is too low, please raise allowance in order to continue participating"
)

// BidUpToMaxRateStrategy bids towards sell_amount * maxPrice, advancing by a
// fixed fraction (step) of the remaining distance each round.
type BidUpToMaxRateStrategy struct {
	maxPrice Amount
	step     decimal.Decimal
}

// NewBidUpToMaxRateStrategy validates the parameters: maxPrice > 0 and 0 < step < 1.
func NewBidUpToMaxRateStrategy(maxPrice Amount, step decimal.Decimal) (*BidUpToMaxRateStrategy, error) {
	if maxPrice.IsZero() {
		return nil, ErrInvalidMaxPrice
	}
	if !step.IsPositive() || step.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidStep, step.String())
	}
	return &BidUpToMaxRateStrategy{maxPrice: maxPrice, step: step}, nil
}

func (s *BidUpToMaxRateStrategy) MaxPrice() Amount {
	return s.maxPrice
}

func (s *BidUpToMaxRateStrategy) Step() decimal.Decimal {
	return s.step
}

// Perform evaluates the auctionlet and bids if every check passes.
//
// Processing flow (the first failing check ends the decision):
//  1. Stop if the current bid already reached our maximum bid
//  2. Stop if the minimal next bid exceeds our maximum bid
//  3. Interpolate the preferred bid by step, raise it to the minimal next bid
//  4. Cap it by our balance
//  5. Stop if the capped bid does not beat the current bid, the minimal next
//     bid, or exceeds our allowance
//  6. Submit the bid once, without retrying
//
// Business rejections are reported in the returned StrategyResult. An error is
// returned only for an InvariantError or a failed balance/allowance read.
func (s *BidUpToMaxRateStrategy) Perform(auctionlet Auctionlet, ctx Context) (StrategyResult, error) {
	auction := auctionlet.Auction()

	currentBid := auctionlet.BuyAmount()
	minIncrease := auction.MinIncrease()

	// current * (100 + min_increase) / 100; Shift keeps the division exact
	increaseFactor := decimal.NewFromInt(1).Add(minIncrease.Shift(-2))
	minNextBidDecimal := currentBid.Decimal().Mul(increaseFactor)
	if minNextBidDecimal.LessThan(currentBid.Decimal()) {
		return StrategyResult{}, invariantError("min_next_bid >= current_bid",
			"min_next_bid=%s current_bid=%s min_increase=%s", minNextBidDecimal, currentBid, minIncrease)
	}
	minNextBid := Amount{d: minNextBidDecimal}

	maxBid := auctionlet.SellAmount().MulAmount(s.maxPrice)

	inputs := DecisionInputs{
		CurrentBid: currentBid,
		MinNextBid: minNextBid,
		MaxBid:     maxBid,
	}

	if currentBid.GreaterThanOrEqual(maxBid) {
		return rejection(OutcomeMaxBidReached, msgMaxBidReached, inputs), nil
	}
	if minNextBid.GreaterThan(maxBid) {
		return rejection(OutcomeMinNextBidExceedsMax, msgMinNextBidExceedsMax, inputs), nil
	}

	preferredBid := currentBid.Add(maxBid.Sub(currentBid).Mul(s.step))
	// min_increase may force us above the interpolated bid
	preferredBid = preferredBid.Max(minNextBid)

	buying := auction.Buying()
	balance, err := buying.BalanceOf(ctx.TraderAddress)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("query balance of %s: %w", ctx.TraderAddress.Hex(), err)
	}
	inputs.Balance = &balance
	ourBid := preferredBid.Min(balance)

	allowance, err := buying.AllowanceOf(ctx.TraderAddress, ctx.AuctionManagerAddress)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("query allowance of %s for %s: %w",
			ctx.TraderAddress.Hex(), ctx.AuctionManagerAddress.Hex(), err)
	}
	inputs.Allowance = &allowance

	switch {
	case ourBid.LessThanOrEqual(currentBid):
		return rejection(OutcomeBalanceNotAboveCurrentBid, msgBalanceNotAboveCurrentBid, inputs), nil
	case ourBid.LessThan(minNextBid):
		return rejection(OutcomeBalanceBelowMinNextBid, msgBalanceBelowMinNextBid, inputs), nil
	case ourBid.GreaterThan(allowance):
		return rejection(OutcomeAllowanceTooLow, msgAllowanceTooLow, inputs), nil
	}

	if err := checkBidBounds(ourBid, inputs); err != nil {
		return StrategyResult{}, err
	}

	result := StrategyResult{Bid: &ourBid, Inputs: inputs}
	accepted, err := auctionlet.Bid(ourBid)
	if accepted && err == nil {
		result.Outcome = OutcomeBidPlaced
		result.Message = fmt.Sprintf("Placed a new bid at %s %s, bid was successful", ourBid, buying.Name())
		return result, nil
	}
	result.Outcome = OutcomeBidFailed
	result.Message = fmt.Sprintf("Tried to place a new bid at %s %s, but the bid failed", ourBid, buying.Name())
	result.Err = err
	return result, nil
}

// checkBidBounds re-verifies the bid against the values it was derived from.
// The bid may land exactly on min_next_bid after the balance cap.
func checkBidBounds(bid Amount, inputs DecisionInputs) error {
	if !bid.GreaterThan(inputs.CurrentBid) {
		return invariantError("bid > current_bid", "bid=%s current_bid=%s", bid, inputs.CurrentBid)
	}
	if bid.LessThan(inputs.MinNextBid) {
		return invariantError("bid >= min_next_bid", "bid=%s min_next_bid=%s", bid, inputs.MinNextBid)
	}
	if bid.GreaterThan(inputs.MaxBid) {
		return invariantError("bid <= max_bid", "bid=%s max_bid=%s", bid, inputs.MaxBid)
	}
	return nil
}

func rejection(outcome Outcome, message string, inputs DecisionInputs) StrategyResult {
	return StrategyResult{Outcome: outcome, Message: message, Inputs: inputs}
}
