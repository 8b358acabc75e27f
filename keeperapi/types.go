package keeperapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/bidkeeper/core"
)

// Scenario describes an auction to simulate: the buying token with its
// holders, the auctionlets on sale and the competing bidders.
type Scenario struct {
	Token          TokenSpec        `json:"token"`
	AuctionManager string           `json:"auction_manager"`
	MinIncrease    decimal.Decimal  `json:"min_increase"` // percent
	Auctionlets    []AuctionletSpec `json:"auctionlets"`
	Competitors    []CompetitorSpec `json:"competitors,omitempty"`
}

// TokenSpec seeds balances and allowances keyed by hex address.
type TokenSpec struct {
	Name       string                            `json:"name"`
	Balances   map[string]core.Amount            `json:"balances"`
	Allowances map[string]map[string]core.Amount `json:"allowances,omitempty"` // owner -> spender -> amount
}

type AuctionletSpec struct {
	ID         string      `json:"id"`
	SellAmount core.Amount `json:"sell_amount"`
	StartBid   core.Amount `json:"start_bid"`
}

// CompetitorSpec is another bidder running the same strategy with its own parameters.
type CompetitorSpec struct {
	Address  string          `json:"address"`
	MaxPrice core.Amount     `json:"max_price"`
	Step     decimal.Decimal `json:"step"`
}

// Validate checks addresses, ids and numeric ranges before any state is built.
func (s *Scenario) Validate() error {
	if s.Token.Name == "" {
		return errors.New("token name is required")
	}
	if !common.IsHexAddress(s.AuctionManager) {
		return fmt.Errorf("invalid auction manager address %q", s.AuctionManager)
	}
	if !s.MinIncrease.IsPositive() {
		return fmt.Errorf("min_increase must be > 0, got %s", s.MinIncrease)
	}
	for holder := range s.Token.Balances {
		if !common.IsHexAddress(holder) {
			return fmt.Errorf("invalid balance holder address %q", holder)
		}
	}
	for owner, spenders := range s.Token.Allowances {
		if !common.IsHexAddress(owner) {
			return fmt.Errorf("invalid allowance owner address %q", owner)
		}
		for spender := range spenders {
			if !common.IsHexAddress(spender) {
				return fmt.Errorf("invalid allowance spender address %q", spender)
			}
		}
	}
	if len(s.Auctionlets) == 0 {
		return errors.New("at least one auctionlet is required")
	}
	seen := make(map[string]bool, len(s.Auctionlets))
	for _, lot := range s.Auctionlets {
		if lot.ID == "" {
			return errors.New("auctionlet id is required")
		}
		if seen[lot.ID] {
			return fmt.Errorf("duplicate auctionlet id %q", lot.ID)
		}
		seen[lot.ID] = true
		if lot.SellAmount.IsZero() {
			return fmt.Errorf("auctionlet %s: sell_amount must be > 0", lot.ID)
		}
	}
	for _, c := range s.Competitors {
		if !common.IsHexAddress(c.Address) {
			return fmt.Errorf("invalid competitor address %q", c.Address)
		}
	}
	return nil
}

// DecisionReport is the externally visible form of one strategy decision.
type DecisionReport struct {
	RoundID      string       `json:"round_id"`
	AuctionletID string       `json:"auctionlet_id"`
	Bidder       string       `json:"bidder"`
	Outcome      core.Outcome `json:"outcome"`
	Message      string       `json:"message"`
	Bid          *core.Amount `json:"bid,omitempty"`
	Error        string       `json:"error,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// AuctionletState is the end-of-round view of an auctionlet.
type AuctionletState struct {
	ID         string      `json:"id"`
	BuyAmount  core.Amount `json:"buy_amount"`
	LastBidder string      `json:"last_bidder,omitempty"`
}

// RoundReport summarises one simulated round across all bidders.
type RoundReport struct {
	Round       int               `json:"round"`
	Decisions   []DecisionReport  `json:"decisions"`
	Auctionlets []AuctionletState `json:"auctionlets"`
}

// JournalGzip is a gzip-compressed, URL-safe base64 (no padding) encoding of
// journal bytes, suitable for pasting into a ticket or a URL parameter.
type JournalGzip string

func (j JournalGzip) String() string {
	return string(j)
}

// CompressJournal gzips raw journal bytes and encodes them URL-safe.
func CompressJournal(journal []byte) (JournalGzip, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("create gzip writer: %w", err)
	}
	if _, err := gz.Write(journal); err != nil {
		return "", fmt.Errorf("compress journal: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	return JournalGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

// Decompress reverses CompressJournal.
func (j JournalGzip) Decompress() ([]byte, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(j))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress journal: %w", err)
	}
	return data, nil
}
