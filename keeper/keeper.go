package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/bidkeeper/core"
	"github.com/cloudx-io/bidkeeper/journal"
)

const defaultMaxWorkers = 4

// Lot is an auctionlet the keeper can tell apart from the others.
type Lot interface {
	core.Auctionlet
	ID() string
}

// Journal receives one record per decision.
type Journal interface {
	Append(rec journal.Record) error
}

// LotResult pairs an auctionlet with the decision taken on it.
type LotResult struct {
	AuctionletID string
	Result       core.StrategyResult
	DecidedAt    time.Time
}

// RoundReport lists the decisions of one round in input order. Results for
// auctionlets skipped after an abort are left empty.
type RoundReport struct {
	RoundID string
	Results []LotResult
}

// Keeper drives a strategy over many auctionlets. Different auctionlets are
// decided concurrently, decisions on the same auctionlet never overlap.
type Keeper struct {
	strategy   core.Strategy
	trader     core.Context
	journal    Journal
	maxWorkers int
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Keeper)

// WithJournal records every decision.
func WithJournal(j Journal) Option {
	return func(k *Keeper) { k.journal = j }
}

// WithMaxWorkers bounds the number of concurrent decisions. Values below 1 are ignored.
func WithMaxWorkers(n int) Option {
	return func(k *Keeper) {
		if n > 0 {
			k.maxWorkers = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

func New(strategy core.Strategy, trader core.Context, opts ...Option) *Keeper {
	k := &Keeper{
		strategy:   strategy,
		trader:     trader,
		maxWorkers: defaultMaxWorkers,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Keeper) Trader() core.Context {
	return k.trader
}

// RunRound asks the strategy once about every lot.
//
// Business outcomes never stop the round. An InvariantError or a failed
// collaborator read cancels the remaining decisions and is returned together
// with the partial report. Journal failures are also returned, since an
// unrecorded bid cannot be audited.
func (k *Keeper) RunRound(ctx context.Context, lots []Lot) (*RoundReport, error) {
	report := &RoundReport{
		RoundID: uuid.NewString(),
		Results: make([]LotResult, len(lots)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.maxWorkers)

	for i, lot := range lots {
		i, lot := i, lot
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			result, err := k.decide(gctx, report.RoundID, lot)
			if err != nil {
				return err
			}
			report.Results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (k *Keeper) decide(ctx context.Context, roundID string, lot Lot) (LotResult, error) {
	unlock := k.lock(lot.ID())
	defer unlock()

	// the round may have been aborted while we waited for the lot
	if err := ctx.Err(); err != nil {
		return LotResult{}, nil
	}

	result, err := k.strategy.Perform(lot, k.trader)
	decidedAt := k.now()
	if err != nil {
		log.Error().Err(err).
			Bool("invariant_violation", errors.Is(err, core.ErrInvariantViolation)).
			Str("round_id", roundID).
			Str("auctionlet_id", lot.ID()).
			Msg("bid decision aborted")
		return LotResult{}, fmt.Errorf("auctionlet %s: %w", lot.ID(), err)
	}

	event := log.Info()
	if result.Outcome == core.OutcomeBidFailed {
		event = log.Warn().AnErr("bid_error", result.Err)
	}
	event = event.
		Str("round_id", roundID).
		Str("auctionlet_id", lot.ID()).
		Str("outcome", string(result.Outcome))
	if result.Bid != nil {
		event = event.Str("bid", result.Bid.String())
	}
	event.Msg(result.Message)

	if k.journal != nil {
		rec := journal.NewRecord(roundID, lot.ID(), k.trader, result, decidedAt)
		if err := k.journal.Append(rec); err != nil {
			return LotResult{}, fmt.Errorf("journal auctionlet %s: %w", lot.ID(), err)
		}
	}

	return LotResult{AuctionletID: lot.ID(), Result: result, DecidedAt: decidedAt}, nil
}

// lock serialises decisions per auctionlet id, including across rounds run concurrently.
func (k *Keeper) lock(id string) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
