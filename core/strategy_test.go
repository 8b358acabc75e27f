package core

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

var (
	testTrader  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testManager = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	testContext = Context{TraderAddress: testTrader, AuctionManagerAddress: testManager}
)

// mockAsset returns fixed balance and allowance values
type mockAsset struct {
	balance      Amount
	allowance    Amount
	balanceErr   error
	allowanceErr error
}

func (m *mockAsset) BalanceOf(common.Address) (Amount, error) {
	return m.balance, m.balanceErr
}

func (m *mockAsset) AllowanceOf(owner, spender common.Address) (Amount, error) {
	if owner != testTrader || spender != testManager {
		return ZeroAmount, nil
	}
	return m.allowance, m.allowanceErr
}

func (*mockAsset) Name() string { return "DAI" }

type mockAuction struct {
	minIncrease decimal.Decimal
	buying      *mockAsset
}

func (m *mockAuction) MinIncrease() decimal.Decimal { return m.minIncrease }
func (m *mockAuction) Buying() Asset                { return m.buying }

// mockAuctionlet records every submitted bid
type mockAuctionlet struct {
	sellAmount Amount
	buyAmount  Amount
	auction    *mockAuction
	accept     bool
	bidErr     error
	bids       []Amount
}

func (m *mockAuctionlet) SellAmount() Amount { return m.sellAmount }
func (m *mockAuctionlet) BuyAmount() Amount  { return m.buyAmount }
func (m *mockAuctionlet) Auction() Auction   { return m.auction }

func (m *mockAuctionlet) Bid(amount Amount) (bool, error) {
	m.bids = append(m.bids, amount)
	return m.accept, m.bidErr
}

type scenario struct {
	sellAmount  string
	currentBid  string
	minIncrease string
	balance     string
	allowance   string
}

// exampleScenario is sell=100, current=100, min increase 1%, ample funds
func exampleScenario() scenario {
	return scenario{
		sellAmount:  "100",
		currentBid:  "100",
		minIncrease: "1",
		balance:     "1000",
		allowance:   "1000",
	}
}

func (s scenario) auctionlet() *mockAuctionlet {
	return &mockAuctionlet{
		sellAmount: amt(s.sellAmount),
		buyAmount:  amt(s.currentBid),
		accept:     true,
		auction: &mockAuction{
			minIncrease: decimal.RequireFromString(s.minIncrease),
			buying: &mockAsset{
				balance:   amt(s.balance),
				allowance: amt(s.allowance),
			},
		},
	}
}

func newTestStrategy(t *testing.T, maxPrice, step string) *BidUpToMaxRateStrategy {
	t.Helper()
	strategy, err := NewBidUpToMaxRateStrategy(amt(maxPrice), decimal.RequireFromString(step))
	assert.NoError(t, err)
	return strategy
}

func TestNewBidUpToMaxRateStrategy_Validation(t *testing.T) {
	tests := []struct {
		name     string
		maxPrice string
		step     string
		wantErr  error
	}{
		{"valid", "2", "0.5", nil},
		{"zero max price", "0", "0.5", ErrInvalidMaxPrice},
		{"zero step", "2", "0", ErrInvalidStep},
		{"step of one", "2", "1", ErrInvalidStep},
		{"step above one", "2", "1.5", ErrInvalidStep},
		{"negative step", "2", "-0.1", ErrInvalidStep},
		{"tiny step", "2", "0.000001", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy, err := NewBidUpToMaxRateStrategy(amt(tt.maxPrice), decimal.RequireFromString(tt.step))
			if tt.wantErr == nil {
				check.NoError(t, err)
				check.NotNil(t, strategy)
				return
			}
			check.True(t, errors.Is(err, tt.wantErr))
			check.Nil(t, strategy)
		})
	}
}

func TestPerform_Examples(t *testing.T) {
	tests := []struct {
		name            string
		modify          func(*scenario)
		expectedOutcome Outcome
		expectedBid     string // empty when no bid is submitted
		expectedMessage string
	}{
		{
			name:            "ample funds bid half way to max",
			modify:          func(*scenario) {},
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "150",
			expectedMessage: "Placed a new bid at 150 DAI, bid was successful",
		},
		{
			name:            "balance caps the bid",
			modify:          func(s *scenario) { s.balance = "120" },
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "120",
			expectedMessage: "Placed a new bid at 120 DAI, bid was successful",
		},
		{
			name:            "balance equal to current bid",
			modify:          func(s *scenario) { s.balance = "100" },
			expectedOutcome: OutcomeBalanceNotAboveCurrentBid,
			expectedMessage: "Our available balance is less or equal to the current auction bid",
		},
		{
			name:            "current bid already at max",
			modify:          func(s *scenario) { s.currentBid = "200" },
			expectedOutcome: OutcomeMaxBidReached,
			expectedMessage: "Our maximum possible bid reached",
		},
		{
			name: "current bid at max ignores funds",
			modify: func(s *scenario) {
				s.currentBid = "200"
				s.balance = "0"
				s.allowance = "0"
			},
			expectedOutcome: OutcomeMaxBidReached,
			expectedMessage: "Our maximum possible bid reached",
		},
		{
			name:            "allowance too low",
			modify:          func(s *scenario) { s.allowance = "50" },
			expectedOutcome: OutcomeAllowanceTooLow,
			expectedMessage: "Allowance is too low, please raise allowance in order to continue participating",
		},
		{
			name:            "min next bid exceeds max",
			modify:          func(s *scenario) { s.currentBid = "199" }, // 199 * 1.01 = 200.99
			expectedOutcome: OutcomeMinNextBidExceedsMax,
			expectedMessage: "Minimal next bid exceeds our maximum possible bid",
		},
		{
			name:            "balance between current and min next bid",
			modify:          func(s *scenario) { s.balance = "100.5" },
			expectedOutcome: OutcomeBalanceBelowMinNextBid,
			expectedMessage: "Our available balance is below minimal next bid",
		},
		{
			name:            "balance lands exactly on min next bid",
			modify:          func(s *scenario) { s.balance = "101" },
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "101",
			expectedMessage: "Placed a new bid at 101 DAI, bid was successful",
		},
		{
			name:            "allowance exactly equal to bid",
			modify:          func(s *scenario) { s.allowance = "150" },
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "150",
			expectedMessage: "Placed a new bid at 150 DAI, bid was successful",
		},
		{
			name: "min increase forces bid above interpolation",
			modify: func(s *scenario) {
				s.minIncrease = "80" // min next bid 180 > preferred 150
			},
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "180",
			expectedMessage: "Placed a new bid at 180 DAI, bid was successful",
		},
		{
			name: "zero current bid",
			modify: func(s *scenario) {
				s.currentBid = "0"
			},
			expectedOutcome: OutcomeBidPlaced,
			expectedBid:     "100",
			expectedMessage: "Placed a new bid at 100 DAI, bid was successful",
		},
		{
			name:            "zero balance",
			modify:          func(s *scenario) { s.balance = "0" },
			expectedOutcome: OutcomeBalanceNotAboveCurrentBid,
			expectedMessage: "Our available balance is less or equal to the current auction bid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := exampleScenario()
			tt.modify(&s)
			lot := s.auctionlet()

			result, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
			assert.NoError(t, err)

			check.Equal(t, tt.expectedOutcome, result.Outcome)
			check.Equal(t, tt.expectedMessage, result.Message)

			if tt.expectedBid == "" {
				check.Nil(t, result.Bid)
				check.Equal(t, 0, len(lot.bids))
				return
			}
			assert.NotNil(t, result.Bid)
			check.Equal(t, tt.expectedBid, result.Bid.String())
			assert.Equal(t, 1, len(lot.bids))
			check.Equal(t, tt.expectedBid, lot.bids[0].String())
		})
	}
}

func TestPerform_BidRejectedByAuction(t *testing.T) {
	lot := exampleScenario().auctionlet()
	lot.accept = false

	result, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	assert.NoError(t, err)

	check.Equal(t, OutcomeBidFailed, result.Outcome)
	check.Equal(t, "Tried to place a new bid at 150 DAI, but the bid failed", result.Message)
	check.True(t, result.Outcome.Attempted())
	check.False(t, result.Placed())
	check.Nil(t, result.Err)
	// no retry
	check.Equal(t, 1, len(lot.bids))
}

func TestPerform_BidSubmissionError(t *testing.T) {
	lot := exampleScenario().auctionlet()
	submitErr := errors.New("outbid")
	lot.bidErr = submitErr

	result, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	assert.NoError(t, err)

	check.Equal(t, OutcomeBidFailed, result.Outcome)
	check.True(t, errors.Is(result.Err, submitErr))
	check.Equal(t, 1, len(lot.bids))
}

func TestPerform_CollaboratorReadErrors(t *testing.T) {
	readErr := errors.New("node unavailable")

	lot := exampleScenario().auctionlet()
	lot.auction.buying.balanceErr = readErr
	_, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	check.True(t, errors.Is(err, readErr))
	check.False(t, errors.Is(err, ErrInvariantViolation))
	check.Equal(t, 0, len(lot.bids))

	lot = exampleScenario().auctionlet()
	lot.auction.buying.allowanceErr = readErr
	_, err = newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	check.True(t, errors.Is(err, readErr))
	check.Equal(t, 0, len(lot.bids))
}

func TestPerform_NegativeMinIncreaseIsInvariantViolation(t *testing.T) {
	s := exampleScenario()
	s.minIncrease = "-5"
	lot := s.auctionlet()

	_, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	assert.Error(t, err)
	check.True(t, errors.Is(err, ErrInvariantViolation))

	var invErr *InvariantError
	check.True(t, errors.As(err, &invErr))
	check.Equal(t, "min_next_bid >= current_bid", invErr.Invariant)
	check.Equal(t, 0, len(lot.bids))
}

func TestPerform_ZeroMinIncrease(t *testing.T) {
	s := exampleScenario()
	s.minIncrease = "0"
	lot := s.auctionlet()

	result, err := newTestStrategy(t, "2", "0.5").Perform(lot, testContext)
	assert.NoError(t, err)
	check.Equal(t, OutcomeBidPlaced, result.Outcome)
	check.Equal(t, "100", result.Inputs.MinNextBid.String())
}

func TestPerform_RecordsDecisionInputs(t *testing.T) {
	s := exampleScenario()
	s.balance = "120"
	result, err := newTestStrategy(t, "2", "0.5").Perform(s.auctionlet(), testContext)
	assert.NoError(t, err)

	check.Equal(t, "100", result.Inputs.CurrentBid.String())
	check.Equal(t, "101", result.Inputs.MinNextBid.String())
	check.Equal(t, "200", result.Inputs.MaxBid.String())
	assert.NotNil(t, result.Inputs.Balance)
	check.Equal(t, "120", result.Inputs.Balance.String())
	assert.NotNil(t, result.Inputs.Allowance)
	check.Equal(t, "1000", result.Inputs.Allowance.String())

	// early gates stop before funds are queried
	s = exampleScenario()
	s.currentBid = "200"
	result, err = newTestStrategy(t, "2", "0.5").Perform(s.auctionlet(), testContext)
	assert.NoError(t, err)
	check.Nil(t, result.Inputs.Balance)
	check.Nil(t, result.Inputs.Allowance)
}

func TestPerform_StepInterpolationBoundaries(t *testing.T) {
	s := exampleScenario()
	s.minIncrease = "0.0001"

	// step close to zero stays close to the current bid (raised to min next bid)
	result, err := newTestStrategy(t, "2", "0.000001").Perform(s.auctionlet(), testContext)
	assert.NoError(t, err)
	assert.NotNil(t, result.Bid)
	check.Equal(t, "100.0001", result.Bid.String())

	// step close to one approaches the max bid without exceeding it
	result, err = newTestStrategy(t, "2", "0.999999").Perform(s.auctionlet(), testContext)
	assert.NoError(t, err)
	assert.NotNil(t, result.Bid)
	check.Equal(t, "199.9999", result.Bid.String())
	check.True(t, result.Bid.LessThanOrEqual(result.Inputs.MaxBid))
}

func TestPerform_SubmittedBidWithinBounds(t *testing.T) {
	balances := []string{"0", "50", "100", "100.5", "101", "101.0000001", "120", "149.99", "150", "199", "1000"}
	allowances := []string{"0", "101", "120", "150", "1000"}
	steps := []string{"0.1", "0.25", "0.5", "0.9"}

	for _, step := range steps {
		strategy := newTestStrategy(t, "2", step)
		for _, balance := range balances {
			for _, allowance := range allowances {
				s := exampleScenario()
				s.balance = balance
				s.allowance = allowance
				lot := s.auctionlet()

				result, err := strategy.Perform(lot, testContext)
				assert.NoError(t, err)

				if !result.Outcome.Attempted() {
					check.Equal(t, 0, len(lot.bids))
					continue
				}
				assert.Equal(t, 1, len(lot.bids))
				b := lot.bids[0]
				check.True(t, b.GreaterThan(result.Inputs.CurrentBid))
				check.True(t, b.GreaterThanOrEqual(result.Inputs.MinNextBid))
				check.True(t, b.LessThanOrEqual(result.Inputs.MaxBid))
				check.True(t, b.LessThanOrEqual(amt(balance)))
				check.True(t, b.LessThanOrEqual(amt(allowance)))
			}
		}
	}
}

func TestCheckBidBounds(t *testing.T) {
	inputs := DecisionInputs{CurrentBid: amt("100"), MinNextBid: amt("101"), MaxBid: amt("200")}

	check.NoError(t, checkBidBounds(amt("101"), inputs))
	check.NoError(t, checkBidBounds(amt("200"), inputs))
	check.True(t, errors.Is(checkBidBounds(amt("100"), inputs), ErrInvariantViolation))
	check.True(t, errors.Is(checkBidBounds(amt("100.5"), inputs), ErrInvariantViolation))
	check.True(t, errors.Is(checkBidBounds(amt("200.01"), inputs), ErrInvariantViolation))
}
