package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset is the token bids are placed in.
// Implementations must be side-effect-free reads.
type Asset interface {
	BalanceOf(address common.Address) (Amount, error)
	AllowanceOf(owner, spender common.Address) (Amount, error)
	Name() string
}

// Auction holds the parameters shared by all auctionlets of one auction.
type Auction interface {
	// MinIncrease is the minimum percentage by which a new bid must exceed the current one.
	MinIncrease() decimal.Decimal
	Buying() Asset
}

// Auctionlet is one live bidding round. Its state is owned by the auction
// system and may change between reads.
type Auctionlet interface {
	SellAmount() Amount
	// BuyAmount is the current highest bid.
	BuyAmount() Amount
	Auction() Auction
	// Bid submits a new bid. It returns false (or an error) when the bid was not accepted.
	Bid(amount Amount) (bool, error)
}

// Context identifies who is acting and which contract manages the auction.
type Context struct {
	TraderAddress         common.Address `json:"trader_address"`
	AuctionManagerAddress common.Address `json:"auction_manager_address"`
}

// Strategy decides whether and how much to bid on an auctionlet.
// A returned error indicates an internal defect or a failed collaborator read,
// never a business rejection.
type Strategy interface {
	Perform(auctionlet Auctionlet, ctx Context) (StrategyResult, error)
}
