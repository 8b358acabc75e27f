package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/bidkeeper/config"
	"github.com/cloudx-io/bidkeeper/validation"
)

// runWithArgs calls run with a fresh flag set and the given command line
func runWithArgs(t *testing.T, args ...string) int {
	t.Helper()
	oldArgs, oldFlags := os.Args, flag.CommandLine
	t.Cleanup(func() {
		os.Args = oldArgs
		flag.CommandLine = oldFlags
	})
	os.Args = append([]string{"bid-simulator"}, args...)
	flag.CommandLine = flag.NewFlagSet("bid-simulator", flag.ContinueOnError)
	return run()
}

func setTraderEnv(t *testing.T, manager string) {
	t.Helper()
	t.Setenv(config.EnvMaxPrice, "2")
	t.Setenv(config.EnvStep, "0.5")
	t.Setenv(config.EnvTraderAddress, traderHex)
	t.Setenv(config.EnvAuctionManagerAddress, manager)
	t.Setenv(config.EnvMaxWorkers, "4")
	t.Setenv(config.EnvJournalPath, "")
}

func TestRun_WritesJournal(t *testing.T) {
	setTraderEnv(t, managerHex)
	path := filepath.Join(t.TempDir(), "decisions.cbor")

	code := runWithArgs(t, "-scenario", scenarioJSON, "-rounds", "3", "-journal", path, "-format", "json")
	check.Equal(t, 0, code)

	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()

	result, err := validation.ValidateJournal(f)
	assert.NoError(t, err)
	// two auctionlets per round, our decisions only
	check.Equal(t, 6, len(result.Records))
	check.True(t, result.IsValid())
}

func TestRun_ExitCodes(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		check.Equal(t, 0, runWithArgs(t, "-help"))
	})
	t.Run("missing scenario", func(t *testing.T) {
		setTraderEnv(t, managerHex)
		check.Equal(t, 2, runWithArgs(t))
	})
	t.Run("unparseable scenario", func(t *testing.T) {
		setTraderEnv(t, managerHex)
		check.Equal(t, 2, runWithArgs(t, "-scenario", "{not json"))
	})
	t.Run("manager mismatch", func(t *testing.T) {
		setTraderEnv(t, competitorHex)
		check.Equal(t, 2, runWithArgs(t, "-scenario", scenarioJSON))
	})
}
