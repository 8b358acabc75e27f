package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/bidkeeper/core"
)

const (
	EnvMaxPrice              = "BIDKEEPER_MAX_PRICE"
	EnvStep                  = "BIDKEEPER_STEP"
	EnvTraderAddress         = "BIDKEEPER_TRADER_ADDRESS"
	EnvAuctionManagerAddress = "BIDKEEPER_AUCTION_MANAGER_ADDRESS"
	EnvMaxWorkers            = "BIDKEEPER_MAX_WORKERS"
	EnvJournalPath           = "BIDKEEPER_JOURNAL_PATH"
)

// Config controls the bidding strategy and the keeper running it.
type Config struct {
	MaxPrice              core.Amount
	Step                  decimal.Decimal
	TraderAddress         common.Address
	AuctionManagerAddress common.Address
	MaxWorkers            int
	JournalPath           string // empty disables the journal
}

func DefaultConfig() Config {
	return Config{
		Step:       decimal.RequireFromString("0.5"),
		MaxWorkers: 4,
	}
}

// Load reads the given .env files (".env" when none are given) into the
// process environment, then builds the config from it. Missing .env files are
// not an error; variables already set in the environment take precedence.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
		log.Debug().Strs("files", envFiles).Msg("no .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv overlays BIDKEEPER_* environment variables on DefaultConfig and validates the result.
func FromEnv() (Config, error) {
	c := DefaultConfig()

	if v := lookup(EnvMaxPrice); v != "" {
		maxPrice, err := core.AmountFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvMaxPrice, err)
		}
		c.MaxPrice = maxPrice
	}
	if v := lookup(EnvStep); v != "" {
		step, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid decimal %q: %w", EnvStep, v, err)
		}
		c.Step = step
	}
	if v := lookup(EnvTraderAddress); v != "" {
		addr, err := parseAddress(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTraderAddress, err)
		}
		c.TraderAddress = addr
	}
	if v := lookup(EnvAuctionManagerAddress); v != "" {
		addr, err := parseAddress(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvAuctionManagerAddress, err)
		}
		c.AuctionManagerAddress = addr
	}
	if v := lookup(EnvMaxWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", EnvMaxWorkers, v)
		}
		c.MaxWorkers = n
	}
	c.JournalPath = lookup(EnvJournalPath)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.MaxPrice.IsZero() {
		return fmt.Errorf("max price must be > 0 (set %s)", EnvMaxPrice)
	}
	if !c.Step.IsPositive() || c.Step.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("step must be between 0 and 1 (exclusive), got %s", c.Step)
	}
	if c.TraderAddress == (common.Address{}) {
		return fmt.Errorf("trader address is required (set %s)", EnvTraderAddress)
	}
	if c.AuctionManagerAddress == (common.Address{}) {
		return fmt.Errorf("auction manager address is required (set %s)", EnvAuctionManagerAddress)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be > 0, got %d", c.MaxWorkers)
	}
	return nil
}

// Strategy builds the bidding strategy from the configured parameters.
func (c Config) Strategy() (*core.BidUpToMaxRateStrategy, error) {
	return core.NewBidUpToMaxRateStrategy(c.MaxPrice, c.Step)
}

// Context returns the identities decisions are taken for.
func (c Config) Context() core.Context {
	return core.Context{
		TraderAddress:         c.TraderAddress,
		AuctionManagerAddress: c.AuctionManagerAddress,
	}
}

func parseAddress(v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid address %q", v)
	}
	return common.HexToAddress(v), nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
