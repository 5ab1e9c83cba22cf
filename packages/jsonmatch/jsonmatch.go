package jsonmatch

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Mode selects how strictly the actual document must mirror the template.
type Mode int

const (
	// Exact requires the same members and array lengths on both sides.
	Exact Mode = iota
	// Subset ignores actual object members the template does not name.
	// Arrays still match as a positional prefix.
	Subset
)

func (m Mode) String() string {
	if m == Subset {
		return "subset"
	}
	return "exact"
}

// Mismatch is one recorded discrepancy, qualified by a JSON path rooted
// at $ (e.g. $.user.roles[2]).
type Mismatch struct {
	Path    string
	Message string
}

func (m Mismatch) String() string {
	return m.Path + ": " + m.Message
}

// Result is the outcome of one comparison. Extracted is populated for
// every placeholder reached during traversal, even when Matched is false,
// so a scenario can still chain values captured before the first
// mismatch. Values are views over the actual document text; both the raw
// JSON and the decoded form are available via gjson.Result.
type Result struct {
	Matched    bool
	Extracted  map[string]gjson.Result
	Mismatches []Mismatch
}

// ExactMatch compares actual against the template requiring structural
// identity everywhere except at placeholder positions.
func ExactMatch(expected, actual string) (*Result, error) {
	return Match(expected, actual, Exact)
}

// SubsetMatch compares actual against the template, tolerating extra
// object members in the actual document.
func SubsetMatch(expected, actual string) (*Result, error) {
	return Match(expected, actual, Subset)
}

// Match normalizes placeholder markers in the template, parses both
// documents, and walks them in lock-step. Malformed JSON on either side
// is an error; structural differences are data, reported in Mismatches
// in depth-first traversal order.
func Match(expected, actual string, mode Mode) (*Result, error) {
	expected = NormalizeTokens(expected)
	if !gjson.Valid(expected) {
		return nil, fmt.Errorf("expected document is not valid JSON")
	}
	if !gjson.Valid(actual) {
		return nil, fmt.Errorf("actual document is not valid JSON")
	}

	m := &matcher{
		mode:      mode,
		extracted: make(map[string]gjson.Result),
	}
	m.compare(gjson.Parse(expected), gjson.Parse(actual), "$")

	return &Result{
		Matched:    len(m.mismatches) == 0,
		Extracted:  m.extracted,
		Mismatches: m.mismatches,
	}, nil
}
