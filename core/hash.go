package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeDecisionHash computes the digest that seals a journaled decision.
// It is used both when writing the journal and when auditing it.
//
// Formula: SHA256(auctionlet_id | round_id | trader | outcome | message | bid |
// current_bid | min_next_bid | max_bid | balance | allowance | nonce)
//
// Amounts are formatted with exactly WadDecimals places, or "none" when absent,
// so equal amounts always hash equally regardless of scale.
func ComputeDecisionHash(auctionletID, roundID, trader string, outcome Outcome, message string, bid *Amount, inputs DecisionInputs, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		auctionletID, roundID, trader, outcome, message,
		fixedOrNone(bid),
		inputs.CurrentBid.StringFixed(WadDecimals),
		inputs.MinNextBid.StringFixed(WadDecimals),
		inputs.MaxBid.StringFixed(WadDecimals),
		fixedOrNone(inputs.Balance),
		fixedOrNone(inputs.Allowance),
		nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

func fixedOrNone(a *Amount) string {
	if a == nil {
		return "none"
	}
	return a.StringFixed(WadDecimals)
}
