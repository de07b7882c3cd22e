package model

// MatchMethod describes how a vendor name was resolved against the company
// master.
type MatchMethod string

const (
	MatchExact MatchMethod = "exact"
	MatchFuzzy MatchMethod = "fuzzy"
	MatchNone  MatchMethod = "none"
)

// MatchResult is the outcome of resolving a vendor name to a company code.
// Method none implies an empty code and a zero score.
type MatchResult struct {
	MatchedCode string      `json:"matched_code,omitempty"`
	Method      MatchMethod `json:"method"`
	Score       float64     `json:"score"`
}

// CompanyEntry is one row of the company master reference dataset. Loaded
// read-only at startup; never mutated at runtime.
type CompanyEntry struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}
