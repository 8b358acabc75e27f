package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/bidkeeper/config"
	"github.com/cloudx-io/bidkeeper/journal"
	"github.com/cloudx-io/bidkeeper/keeper"
	"github.com/cloudx-io/bidkeeper/keeperapi"
)

func main() {
	os.Exit(run())
}

// run executes the simulator and returns the process exit code.
func run() int {
	var (
		scenarioInput = flag.String("scenario", "", "Scenario JSON (file path or inline JSON)")
		rounds        = flag.Int("rounds", 10, "Maximum number of rounds to run")
		envFile       = flag.String("env", "", "Env file to load before reading BIDKEEPER_* variables (default: .env)")
		journalPath   = flag.String("journal", "", "Append decisions to this CBOR journal (overrides BIDKEEPER_JOURNAL_PATH)")
		share         = flag.Bool("share", false, "Print the run's journal as gzip+base64 for sharing")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		verbose       = flag.Bool("verbose", false, "Log every decision")
		help          = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		return 0
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *scenarioInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --scenario is required\n")
		return 2
	}
	if *rounds < 1 {
		fmt.Fprintf(os.Stderr, "Error: --rounds must be at least 1\n")
		return 2
	}

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 2
	}
	if *journalPath != "" {
		cfg.JournalPath = *journalPath
	}

	scenario, err := readScenario(*scenarioInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading scenario: %v\n", err)
		return 2
	}

	var (
		sinks     []io.Writer
		shareBuf  bytes.Buffer
		decisions keeper.Journal
	)
	if cfg.JournalPath != "" {
		f, err := os.OpenFile(cfg.JournalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			return 2
		}
		defer f.Close()
		sinks = append(sinks, f)
	}
	if *share {
		sinks = append(sinks, &shareBuf)
	}
	if len(sinks) > 0 {
		decisions = journal.NewWriter(io.MultiWriter(sinks...))
	}

	sim, err := newSimulation(scenario, cfg, decisions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building simulation: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("trader", cfg.TraderAddress.Hex()).
		Str("max_price", cfg.MaxPrice.String()).
		Str("step", cfg.Step.String()).
		Int("auctionlets", len(scenario.Auctionlets)).
		Int("competitors", len(scenario.Competitors)).
		Msg("simulation starting")

	reports, runErr := playRounds(ctx, sim, *rounds)

	if *outputFormat == "json" {
		if err := outputJSON(reports); err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
			return 2
		}
	} else {
		outputText(reports)
	}

	if *share {
		shared, err := keeperapi.CompressJournal(shareBuf.Bytes())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error compressing journal: %v\n", err)
			return 2
		}
		fmt.Println()
		fmt.Printf("Journal (gzip+base64): %s\n", shared)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Simulation aborted: %v\n", runErr)
		return 1
	}
	return 0
}

// playRounds plays rounds until none of the bidders submits a bid or maxRounds is reached.
func playRounds(ctx context.Context, sim *simulation, maxRounds int) ([]keeperapi.RoundReport, error) {
	var reports []keeperapi.RoundReport
	for round := 1; round <= maxRounds; round++ {
		report, err := sim.runRound(ctx, round)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
		if attempted(report) == 0 {
			log.Info().Int("round", round).Msg("no bids submitted, auction settled")
			break
		}
	}
	return reports, nil
}

func showUsage() {
	fmt.Println("Bid Keeper Simulator")
	fmt.Println()
	fmt.Println("Runs the bid-up-to-max-rate strategy against an in-memory auction.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  bid-simulator --scenario <json> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --scenario <json>                 Scenario (file path or inline JSON)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --rounds <n>                      Maximum rounds (default: 10)")
	fmt.Println("  --env <file>                      Env file to load (default: .env)")
	fmt.Println("  --journal <path>                  Append decisions to a CBOR journal")
	fmt.Println("  --share                           Print the journal as gzip+base64")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --verbose                         Log every decision")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %-34s Maximum price per sold unit (required)\n", config.EnvMaxPrice)
	fmt.Printf("  %-34s Fraction of the gap to max bid (default: 0.5)\n", config.EnvStep)
	fmt.Printf("  %-34s Our address (required)\n", config.EnvTraderAddress)
	fmt.Printf("  %-34s Auction manager address (required)\n", config.EnvAuctionManagerAddress)
	fmt.Printf("  %-34s Concurrent decisions (default: 4)\n", config.EnvMaxWorkers)
	fmt.Printf("  %-34s CBOR journal path\n", config.EnvJournalPath)
	fmt.Println()
	fmt.Println("Scenario:")
	fmt.Println("  {")
	fmt.Println("    \"token\": {")
	fmt.Println("      \"name\": \"DAI\",")
	fmt.Println("      \"balances\": {\"0xa1...\": \"1000\"},")
	fmt.Println("      \"allowances\": {\"0xa1...\": {\"0xb2...\": \"1000\"}}")
	fmt.Println("    },")
	fmt.Println("    \"auction_manager\": \"0xb2...\",")
	fmt.Println("    \"min_increase\": \"1\",")
	fmt.Println("    \"auctionlets\": [{\"id\": \"lot-1\", \"sell_amount\": \"100\", \"start_bid\": \"100\"}],")
	fmt.Println("    \"competitors\": [{\"address\": \"0xc3...\", \"max_price\": \"1.8\", \"step\": \"0.3\"}]")
	fmt.Println("  }")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Simulation completed")
	fmt.Println("  1 - A decision was aborted")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readScenario(input string) (*keeperapi.Scenario, error) {
	data := []byte(input)
	// Try reading as file first
	if fileData, err := os.ReadFile(input); err == nil {
		data = fileData
	}

	var scenario keeperapi.Scenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &scenario, nil
}

func outputText(reports []keeperapi.RoundReport) {
	fmt.Println("Bid Keeper Simulation")
	fmt.Println("=====================")

	for _, report := range reports {
		fmt.Println()
		fmt.Printf("Round %d:\n", report.Round)
		for _, d := range report.Decisions {
			fmt.Printf("  [%s] %s %s: %s\n", d.AuctionletID, d.Bidder, d.Outcome, d.Message)
			if d.Error != "" {
				fmt.Printf("      error: %s\n", d.Error)
			}
		}
		fmt.Println("  Auctionlets:")
		for _, s := range report.Auctionlets {
			bidder := s.LastBidder
			if bidder == "" {
				bidder = "(no bids)"
			}
			fmt.Printf("    %-12s buy_amount=%s last_bidder=%s\n", s.ID, s.BuyAmount, bidder)
		}
	}

	fmt.Println()
	fmt.Println("=====================")
	fmt.Printf("Rounds played: %d\n", len(reports))
}

func outputJSON(reports []keeperapi.RoundReport) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
