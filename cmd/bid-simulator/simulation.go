package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/bidkeeper/config"
	"github.com/cloudx-io/bidkeeper/core"
	"github.com/cloudx-io/bidkeeper/keeper"
	"github.com/cloudx-io/bidkeeper/keeperapi"
	"github.com/cloudx-io/bidkeeper/ledger"
)

// bidder is one keeper taking turns on the shared ledger
type bidder struct {
	address common.Address
	keeper  *keeper.Keeper
}

// simulation replays a scenario on the in-memory ledger. The configured
// trader always moves first in a round, competitors follow in scenario order.
type simulation struct {
	token   *ledger.Token
	auction *ledger.Auction
	lots    []*ledger.Auctionlet
	bidders []bidder
}

func newSimulation(scenario *keeperapi.Scenario, cfg config.Config, j keeper.Journal) (*simulation, error) {
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	manager := common.HexToAddress(scenario.AuctionManager)
	if manager != cfg.AuctionManagerAddress {
		return nil, fmt.Errorf("scenario auction manager %s does not match configured %s", manager.Hex(), cfg.AuctionManagerAddress.Hex())
	}

	token := ledger.NewToken(scenario.Token.Name)
	for holder, amount := range scenario.Token.Balances {
		token.Mint(common.HexToAddress(holder), amount)
	}
	for owner, spenders := range scenario.Token.Allowances {
		for spender, amount := range spenders {
			token.Approve(common.HexToAddress(owner), common.HexToAddress(spender), amount)
		}
	}

	auction, err := ledger.NewAuction(token, scenario.MinIncrease, manager)
	if err != nil {
		return nil, err
	}

	sim := &simulation{token: token, auction: auction}
	for _, lot := range scenario.Auctionlets {
		sim.lots = append(sim.lots, auction.NewAuctionlet(lot.ID, lot.SellAmount, lot.StartBid))
	}

	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}
	opts := []keeper.Option{keeper.WithMaxWorkers(cfg.MaxWorkers)}
	if j != nil {
		opts = append(opts, keeper.WithJournal(j))
	}
	sim.bidders = append(sim.bidders, bidder{
		address: cfg.TraderAddress,
		keeper:  keeper.New(strategy, cfg.Context(), opts...),
	})

	for _, c := range scenario.Competitors {
		competitor, err := core.NewBidUpToMaxRateStrategy(c.MaxPrice, c.Step)
		if err != nil {
			return nil, fmt.Errorf("competitor %s: %w", c.Address, err)
		}
		addr := common.HexToAddress(c.Address)
		if addr == cfg.TraderAddress {
			return nil, fmt.Errorf("competitor %s is the configured trader", c.Address)
		}
		sim.bidders = append(sim.bidders, bidder{
			address: addr,
			keeper: keeper.New(competitor, core.Context{
				TraderAddress:         addr,
				AuctionManagerAddress: manager,
			}, keeper.WithMaxWorkers(cfg.MaxWorkers)),
		})
	}

	return sim, nil
}

// runRound gives every bidder one turn over every auctionlet. The returned
// report holds whatever was decided before an abort.
func (s *simulation) runRound(ctx context.Context, round int) (keeperapi.RoundReport, error) {
	report := keeperapi.RoundReport{Round: round}

	for _, b := range s.bidders {
		lots := make([]keeper.Lot, len(s.lots))
		for i, lot := range s.lots {
			lots[i] = lot.As(b.address)
		}

		res, err := b.keeper.RunRound(ctx, lots)
		if res != nil {
			report.Decisions = append(report.Decisions, decisionReports(res, b.address)...)
		}
		if err != nil {
			report.Auctionlets = s.states()
			return report, fmt.Errorf("bidder %s: %w", b.address.Hex(), err)
		}
	}

	report.Auctionlets = s.states()
	return report, nil
}

func (s *simulation) states() []keeperapi.AuctionletState {
	out := make([]keeperapi.AuctionletState, 0, len(s.lots))
	for _, lot := range s.lots {
		state := keeperapi.AuctionletState{ID: lot.ID(), BuyAmount: lot.BuyAmount()}
		if addr, ok := lot.LastBidder(); ok {
			state.LastBidder = addr.Hex()
		}
		out = append(out, state)
	}
	return out
}

func decisionReports(res *keeper.RoundReport, addr common.Address) []keeperapi.DecisionReport {
	out := make([]keeperapi.DecisionReport, 0, len(res.Results))
	for _, r := range res.Results {
		// skipped after an abort
		if r.AuctionletID == "" {
			continue
		}
		d := keeperapi.DecisionReport{
			RoundID:      res.RoundID,
			AuctionletID: r.AuctionletID,
			Bidder:       addr.Hex(),
			Outcome:      r.Result.Outcome,
			Message:      r.Result.Message,
			Bid:          r.Result.Bid,
			Timestamp:    r.DecidedAt,
		}
		if r.Result.Err != nil {
			d.Error = r.Result.Err.Error()
		}
		out = append(out, d)
	}
	return out
}

// attempted counts the decisions of a round that submitted a bid.
func attempted(report keeperapi.RoundReport) int {
	n := 0
	for _, d := range report.Decisions {
		if d.Outcome.Attempted() {
			n++
		}
	}
	return n
}
