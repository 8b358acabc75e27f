package journal

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/cloudx-io/bidkeeper/core"
)

// Record is one journaled decision. Amounts are exact decimal strings; an
// empty string means the value was not known when the decision ended.
type Record struct {
	ID           string `cbor:"id"`
	RoundID      string `cbor:"round_id"`
	AuctionletID string `cbor:"auctionlet_id"`
	Trader       string `cbor:"trader"`
	Outcome      string `cbor:"outcome"`
	Message      string `cbor:"message"`
	Bid          string `cbor:"bid,omitempty"`
	CurrentBid   string `cbor:"current_bid"`
	MinNextBid   string `cbor:"min_next_bid"`
	MaxBid       string `cbor:"max_bid"`
	Balance      string `cbor:"balance,omitempty"`
	Allowance    string `cbor:"allowance,omitempty"`
	Error        string `cbor:"error,omitempty"`
	Nonce        string `cbor:"nonce"`
	Digest       string `cbor:"digest"`
	RecordedAt   int64  `cbor:"recorded_at"` // unix nanoseconds
}

// NewRecord builds a sealed record for a decision. A fresh random nonce is
// drawn for the digest, which covers every field an audit checks.
func NewRecord(roundID, auctionletID string, ctx core.Context, result core.StrategyResult, now time.Time) Record {
	rec := Record{
		ID:           uuid.NewString(),
		RoundID:      roundID,
		AuctionletID: auctionletID,
		Trader:       ctx.TraderAddress.Hex(),
		Outcome:      string(result.Outcome),
		Message:      result.Message,
		CurrentBid:   result.Inputs.CurrentBid.String(),
		MinNextBid:   result.Inputs.MinNextBid.String(),
		MaxBid:       result.Inputs.MaxBid.String(),
		Nonce:        uuid.NewString(),
		RecordedAt:   now.UnixNano(),
	}
	if result.Bid != nil {
		rec.Bid = result.Bid.String()
	}
	if result.Inputs.Balance != nil {
		rec.Balance = result.Inputs.Balance.String()
	}
	if result.Inputs.Allowance != nil {
		rec.Allowance = result.Inputs.Allowance.String()
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	rec.Digest = core.ComputeDecisionHash(auctionletID, roundID, rec.Trader, result.Outcome, result.Message, result.Bid, result.Inputs, rec.Nonce)
	return rec
}

// Writer appends CBOR-encoded records to an underlying stream. It is safe for
// concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w)}
}

func (w *Writer) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode journal record %s: %w", rec.ID, err)
	}
	return nil
}

// ReadAll decodes every record in r until EOF.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	records := make([]Record, 0)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decode journal record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// Memory keeps records in memory. Used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func (m *Memory) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
