package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cloudx-io/bidkeeper/keeperapi"
	"github.com/cloudx-io/bidkeeper/validation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run validates the journal named by args and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	// Define CLI flags
	fs := flag.NewFlagSet("journal-validator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		journalPath  = fs.String("journal", "", "Path to a CBOR decision journal")
		journalGzip  = fs.String("journal-gzip", "", "Journal as printed by bid-simulator --share (gzip+base64)")
		outputFormat = fs.String("format", "text", "Output format: text or json")
		verbose      = fs.Bool("verbose", false, "Show details for valid records too")
		help         = fs.Bool("help", false, "Show usage information")
	)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Show help
	if *help {
		showUsage(stdout)
		return 0
	}

	if (*journalPath == "") == (*journalGzip == "") {
		showUsage(stdout)
		fmt.Fprintf(stderr, "\nError: exactly one of --journal or --journal-gzip is required\n")
		return 2
	}

	input, err := openJournal(*journalPath, *journalGzip)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading journal: %v\n", err)
		return 2
	}
	defer input.Close()

	result, err := validation.ValidateJournal(input)
	if err != nil {
		fmt.Fprintf(stderr, "Validation error: %v\n", err)
		return 2
	}

	// Output results
	if *outputFormat == "json" {
		if err := outputJSON(stdout, result); err != nil {
			fmt.Fprintf(stderr, "Error marshaling JSON: %v\n", err)
			return 2
		}
	} else {
		outputText(stdout, result, *verbose)
	}

	// Exit with appropriate code
	if !result.IsValid() {
		return 1
	}
	return 0
}

func openJournal(path, shared string) (io.ReadCloser, error) {
	if path != "" {
		return os.Open(path)
	}
	data, err := keeperapi.JournalGzip(shared).Decompress()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, "Bid Decision Journal Validator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Audits journaled bid decisions: digests, outcomes and bid bounds.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  journal-validator --journal <path> [options]")
	fmt.Fprintln(w, "  journal-validator --journal-gzip <data> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input Flags (one required):")
	fmt.Fprintln(w, "  --journal <path>                  CBOR journal written by the keeper")
	fmt.Fprintln(w, "  --journal-gzip <data>             Shared journal (gzip+base64)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Optional Flags:")
	fmt.Fprintln(w, "  --format <text|json>              Output format (default: text)")
	fmt.Fprintln(w, "  --verbose                         Show details for valid records too")
	fmt.Fprintln(w, "  --help                            Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Checks per record:")
	fmt.Fprintln(w, "  - digest matches auctionlet, round, outcome, bid and nonce")
	fmt.Fprintln(w, "  - outcome is known and carries a bid exactly when one was submitted")
	fmt.Fprintln(w, "  - submitted bid: current < bid, min_next <= bid <= max, bid <= balance and allowance")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit Codes:")
	fmt.Fprintln(w, "  0 - Validation passed")
	fmt.Fprintln(w, "  1 - Validation failed")
	fmt.Fprintln(w, "  2 - Invalid input or runtime error")
}

func outputText(w io.Writer, result *validation.JournalValidationResult, verbose bool) {
	fmt.Fprintln(w, "Bid Decision Journal Validator")
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w)

	for _, rec := range result.Records {
		status := "✓"
		if !rec.IsValid() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s [%s] %s\n", status, rec.RecordID, rec.AuctionletID, rec.Outcome)
		if verbose || !rec.IsValid() {
			fmt.Fprintf(w, "    Digest Valid:   %v\n", rec.DigestValid)
			fmt.Fprintf(w, "    Outcome Valid:  %v\n", rec.OutcomeValid)
			fmt.Fprintf(w, "    Bounds Valid:   %v\n", rec.BoundsValid)
			for _, detail := range rec.ValidationDetails {
				fmt.Fprintf(w, "    - %s\n", detail)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Records:  %d\n", len(result.Records))
	fmt.Fprintf(w, "  Invalid:  %d\n", result.InvalidCount())

	fmt.Fprintln(w)
	fmt.Fprintln(w, "==============================")
	if result.IsValid() {
		fmt.Fprintln(w, "VALIDATION: ✓ PASSED")
		fmt.Fprintln(w, "Exit Code: 0")
	} else {
		fmt.Fprintln(w, "VALIDATION: ✗ FAILED")
		fmt.Fprintln(w, "Exit Code: 1")
	}
}

func outputJSON(w io.Writer, result *validation.JournalValidationResult) error {
	records := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, map[string]any{
			"record_id":     rec.RecordID,
			"auctionlet_id": rec.AuctionletID,
			"outcome":       rec.Outcome,
			"valid":         rec.IsValid(),
			"digest_valid":  rec.DigestValid,
			"outcome_valid": rec.OutcomeValid,
			"bounds_valid":  rec.BoundsValid,
			"details":       rec.ValidationDetails,
		})
	}
	output := map[string]any{
		"valid":         result.IsValid(),
		"record_count":  len(result.Records),
		"invalid_count": result.InvalidCount(),
		"records":       records,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
