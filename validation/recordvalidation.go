package validation

import (
	"fmt"
	"io"

	"github.com/cloudx-io/bidkeeper/core"
	"github.com/cloudx-io/bidkeeper/journal"
)

// recordAmounts holds the parsed amounts of a record; nil means absent
type recordAmounts struct {
	bid        *core.Amount
	currentBid core.Amount
	minNextBid core.Amount
	maxBid     core.Amount
	balance    *core.Amount
	allowance  *core.Amount
}

// ValidateRecord audits a journaled decision and verifies:
// - The digest matches the record contents (trader, outcome, message and every amount)
// - The outcome is known and a bid is present exactly when one was submitted
// - A submitted bid respected min_next_bid <= bid <= max_bid, bid > current_bid,
//   bid <= balance and bid <= allowance
//
// Returns:
//   - RecordValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (malformed amounts)
func ValidateRecord(rec journal.Record) (*RecordValidationResult, error) {
	amounts, err := parseRecordAmounts(rec)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.ID, err)
	}

	result := &RecordValidationResult{
		RecordID:     rec.ID,
		AuctionletID: rec.AuctionletID,
		Outcome:      rec.Outcome,
	}

	result.DigestValid = validateDigest(rec, amounts, result)
	result.OutcomeValid = validateOutcome(rec, amounts, result)
	result.BoundsValid = validateBounds(rec, amounts, result)

	return result, nil
}

// ValidateJournal decodes a CBOR journal stream and validates every record.
func ValidateJournal(r io.Reader) (*JournalValidationResult, error) {
	records, err := journal.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	result := &JournalValidationResult{Records: make([]*RecordValidationResult, 0, len(records))}
	for _, rec := range records {
		recResult, err := ValidateRecord(rec)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, recResult)
	}
	return result, nil
}

func validateDigest(rec journal.Record, amounts *recordAmounts, result *RecordValidationResult) bool {
	if rec.Nonce == "" {
		result.ValidationDetails = append(result.ValidationDetails, "Decision nonce missing from record")
		return false
	}

	inputs := core.DecisionInputs{
		CurrentBid: amounts.currentBid,
		MinNextBid: amounts.minNextBid,
		MaxBid:     amounts.maxBid,
		Balance:    amounts.balance,
		Allowance:  amounts.allowance,
	}
	computed := core.ComputeDecisionHash(rec.AuctionletID, rec.RoundID, rec.Trader, core.Outcome(rec.Outcome), rec.Message, amounts.bid, inputs, rec.Nonce)
	if computed == rec.Digest {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Digest validation passed: %s", computed))
		return true
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Digest mismatch: computed %s, record has %s", computed, rec.Digest))
	return false
}

func validateOutcome(rec journal.Record, amounts *recordAmounts, result *RecordValidationResult) bool {
	outcome := core.Outcome(rec.Outcome)
	switch outcome {
	case core.OutcomeMaxBidReached, core.OutcomeMinNextBidExceedsMax,
		core.OutcomeBalanceNotAboveCurrentBid, core.OutcomeBalanceBelowMinNextBid,
		core.OutcomeAllowanceTooLow, core.OutcomeBidPlaced, core.OutcomeBidFailed:
	default:
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Unknown outcome %q", rec.Outcome))
		return false
	}

	if outcome.Attempted() != (amounts.bid != nil) {
		if amounts.bid == nil {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Outcome %s requires a bid amount", outcome))
		} else {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Outcome %s must not carry a bid, record has %s", outcome, amounts.bid))
		}
		return false
	}

	result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Outcome validation passed: %s", outcome))
	return true
}

func validateBounds(rec journal.Record, amounts *recordAmounts, result *RecordValidationResult) bool {
	if amounts.bid == nil {
		result.ValidationDetails = append(result.ValidationDetails, "No bid submitted, bounds not applicable")
		return true
	}
	bid := *amounts.bid

	valid := true
	fail := func(format string, args ...any) {
		valid = false
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf(format, args...))
	}

	if !bid.GreaterThan(amounts.currentBid) {
		fail("Bid %s does not exceed current bid %s", bid, amounts.currentBid)
	}
	if bid.LessThan(amounts.minNextBid) {
		fail("Bid %s below minimal next bid %s", bid, amounts.minNextBid)
	}
	if bid.GreaterThan(amounts.maxBid) {
		fail("Bid %s above maximum bid %s", bid, amounts.maxBid)
	}
	if amounts.balance == nil || bid.GreaterThan(*amounts.balance) {
		fail("Bid %s not covered by recorded balance %s", bid, rec.Balance)
	}
	if amounts.allowance == nil || bid.GreaterThan(*amounts.allowance) {
		fail("Bid %s not covered by recorded allowance %s", bid, rec.Allowance)
	}

	if valid {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Bounds validation passed: %s <= %s <= %s", amounts.minNextBid, bid, amounts.maxBid))
	}
	return valid
}

func parseRecordAmounts(rec journal.Record) (*recordAmounts, error) {
	var (
		out recordAmounts
		err error
	)
	if out.bid, err = parseOptional("bid", rec.Bid); err != nil {
		return nil, err
	}
	if out.balance, err = parseOptional("balance", rec.Balance); err != nil {
		return nil, err
	}
	if out.allowance, err = parseOptional("allowance", rec.Allowance); err != nil {
		return nil, err
	}
	if out.currentBid, err = core.AmountFromString(rec.CurrentBid); err != nil {
		return nil, fmt.Errorf("current_bid: %w", err)
	}
	if out.minNextBid, err = core.AmountFromString(rec.MinNextBid); err != nil {
		return nil, fmt.Errorf("min_next_bid: %w", err)
	}
	if out.maxBid, err = core.AmountFromString(rec.MaxBid); err != nil {
		return nil, fmt.Errorf("max_bid: %w", err)
	}
	return &out, nil
}

func parseOptional(field, value string) (*core.Amount, error) {
	if value == "" {
		return nil, nil
	}
	a, err := core.AmountFromString(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &a, nil
}
