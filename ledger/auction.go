package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/bidkeeper/core"
)

var (
	ErrInvalidMinIncrease = errors.New("min increase must be greater than zero")
	ErrAuctionletExpired  = errors.New("auctionlet is no longer live")
	ErrBidTooLow          = errors.New("bid below minimal next bid")
)

// Auction groups auctionlets that share a buying token, a min increase and the
// manager contract holding escrowed bids.
type Auction struct {
	buying      *Token
	minIncrease decimal.Decimal
	manager     common.Address
}

var _ core.Auction = (*Auction)(nil)

func NewAuction(buying *Token, minIncrease decimal.Decimal, manager common.Address) (*Auction, error) {
	if !minIncrease.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidMinIncrease, minIncrease)
	}
	return &Auction{buying: buying, minIncrease: minIncrease, manager: manager}, nil
}

func (a *Auction) MinIncrease() decimal.Decimal { return a.minIncrease }
func (a *Auction) Buying() core.Asset           { return a.buying }
func (a *Auction) Manager() common.Address      { return a.manager }
func (a *Auction) Token() *Token                { return a.buying }

// Auctionlet is a live bidding round. The highest bid is escrowed by the
// auction manager and refunded to the previous bidder when outbid.
type Auctionlet struct {
	mu         sync.Mutex
	id         string
	auction    *Auction
	sellAmount core.Amount
	buyAmount  core.Amount
	lastBidder common.Address
	hasBid     bool
	expired    bool
}

func (a *Auction) NewAuctionlet(id string, sellAmount, startBid core.Amount) *Auctionlet {
	return &Auctionlet{
		id:         id,
		auction:    a,
		sellAmount: sellAmount,
		buyAmount:  startBid,
	}
}

func (l *Auctionlet) ID() string { return l.id }

func (l *Auctionlet) SellAmount() core.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sellAmount
}

func (l *Auctionlet) BuyAmount() core.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buyAmount
}

// LastBidder returns the current winning bidder, if any bid was accepted.
func (l *Auctionlet) LastBidder() (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastBidder, l.hasBid
}

// Expire ends the round; later bids are rejected.
func (l *Auctionlet) Expire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expired = true
}

// BidFrom places a bid on behalf of bidder. The bid must be at least
// buy_amount * (1 + min_increase/100) and strictly above buy_amount. The
// amount is pulled from the bidder through the manager's allowance and the
// previous bidder is refunded. When the refund fails the bid is returned to
// bidder and the auctionlet is left unchanged.
func (l *Auctionlet) BidFrom(bidder common.Address, amount core.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.expired {
		return fmt.Errorf("%w: %s", ErrAuctionletExpired, l.id)
	}

	minNextBid := l.buyAmount.Mul(decimal.NewFromInt(1).Add(l.auction.minIncrease.Shift(-2)))
	if !amount.GreaterThan(l.buyAmount) || amount.LessThan(minNextBid) {
		return fmt.Errorf("%w: bid %s, current %s, minimal next %s", ErrBidTooLow, amount, l.buyAmount, minNextBid)
	}

	token := l.auction.buying
	manager := l.auction.manager
	if err := token.TransferFrom(manager, bidder, manager, amount); err != nil {
		return fmt.Errorf("collect bid from %s: %w", bidder.Hex(), err)
	}
	if l.hasBid {
		if err := token.Transfer(manager, l.lastBidder, l.buyAmount); err != nil {
			refundErr := fmt.Errorf("refund %s: %w", l.lastBidder.Hex(), err)
			// hand the new bid back, the auctionlet keeps its previous state
			if undoErr := token.reverseTransferFrom(manager, bidder, manager, amount); undoErr != nil {
				return errors.Join(refundErr, fmt.Errorf("return bid to %s: %w", bidder.Hex(), undoErr))
			}
			return refundErr
		}
	}

	l.buyAmount = amount
	l.lastBidder = bidder
	l.hasBid = true
	return nil
}

// As returns a view of the auctionlet that submits bids as bidder.
func (l *Auctionlet) As(bidder common.Address) *BidderView {
	return &BidderView{Auctionlet: l, bidder: bidder}
}

// BidderView binds an auctionlet to the address that signs its bids, the way a
// remote ledger binds a submission to the sender's key.
type BidderView struct {
	*Auctionlet
	bidder common.Address
}

var _ core.Auctionlet = (*BidderView)(nil)

func (v *BidderView) Auction() core.Auction {
	return v.auction
}

// Bid reports a rejected bid as (false, err).
func (v *BidderView) Bid(amount core.Amount) (bool, error) {
	if err := v.BidFrom(v.bidder, amount); err != nil {
		return false, err
	}
	return true, nil
}
