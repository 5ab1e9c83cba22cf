package runner

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/http"
	"github.com/edouardp/ApiTest/packages/jsonmatch"
)

// ExpectationResult is the outcome of comparing a response against the
// literal expected response block of a request.
type ExpectationResult struct {
	Passed         bool
	ExpectedStatus int
	ActualStatus   int
	StatusPassed   bool
	HeaderFailures []string
	BodyMismatches []jsonmatch.Mismatch
	BodyError      error
	Extracted      map[string]any
}

// checkExpectation compares status, headers and body against the expected
// response template. [[NAME]] placeholders in the body bind to the actual
// values and become captures, even when other parts of the body mismatch.
func (r *Runner) checkExpectation(req *parser.Request, resp *http.Response, parallel bool) *ExpectationResult {
	expect := req.Expect
	result := &ExpectationResult{
		ExpectedStatus: expect.Status,
		ActualStatus:   resp.StatusCode,
		StatusPassed:   true,
		Extracted:      make(map[string]any),
	}

	if expect.Status != 0 && expect.Status != resp.StatusCode {
		result.StatusPassed = false
	}

	for _, h := range expect.Headers {
		want := r.resolver.Resolve(h.Value)
		got := resp.Header(h.Key)
		if got == "" {
			result.HeaderFailures = append(result.HeaderFailures,
				fmt.Sprintf("missing header %s", h.Key))
		} else if got != want {
			result.HeaderFailures = append(result.HeaderFailures,
				fmt.Sprintf("header %s: expected %q, got %q", h.Key, want, got))
		}
	}

	if body := strings.TrimSpace(expect.Body); body != "" {
		r.checkExpectedBody(req, body, resp, result, parallel)
	}

	result.Passed = result.StatusPassed &&
		len(result.HeaderFailures) == 0 &&
		len(result.BodyMismatches) == 0 &&
		result.BodyError == nil
	return result
}

func (r *Runner) checkExpectedBody(req *parser.Request, expected string, resp *http.Response, result *ExpectationResult, parallel bool) {
	expected = r.resolver.Resolve(expected)
	actual := resp.BodyString()

	if !gjson.Valid(actual) {
		// plain text templates compare literally
		if strings.TrimSpace(expected) != strings.TrimSpace(actual) {
			result.BodyError = fmt.Errorf("body mismatch: expected %q, got %q", expected, actual)
		}
		return
	}

	mode := jsonmatch.Exact
	if req.Expect.Mode == parser.MatchSubset {
		mode = jsonmatch.Subset
	}

	match, err := jsonmatch.Match(expected, actual, mode)
	if err != nil {
		result.BodyError = err
		return
	}

	// captures bind regardless of match outcome so later requests can
	// still reference what did resolve
	for name, value := range match.Extracted {
		result.Extracted[name] = value.Value()
		if !parallel {
			r.resolver.SetCapture(req.Name, name, value.Value())
		}
	}

	result.BodyMismatches = match.Mismatches
}
