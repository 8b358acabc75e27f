package validation

// RecordValidationResult contains validation results for a single journal record
type RecordValidationResult struct {
	RecordID          string
	AuctionletID      string
	Outcome           string
	DigestValid       bool
	OutcomeValid      bool
	BoundsValid       bool
	ValidationDetails []string
}

// IsValid returns true if all record validation checks passed
func (r *RecordValidationResult) IsValid() bool {
	return r.DigestValid && r.OutcomeValid && r.BoundsValid
}

// JournalValidationResult aggregates the results for a whole journal
type JournalValidationResult struct {
	Records []*RecordValidationResult
}

// IsValid returns true if every record is valid
func (r *JournalValidationResult) IsValid() bool {
	for _, rec := range r.Records {
		if !rec.IsValid() {
			return false
		}
	}
	return true
}

// InvalidCount returns the number of records failing validation
func (r *JournalValidationResult) InvalidCount() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.IsValid() {
			n++
		}
	}
	return n
}
