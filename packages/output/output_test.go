package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edouardp/ApiTest/packages/core/runner"
	"github.com/edouardp/ApiTest/packages/jsonmatch"
)

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		File:     "api.http",
		Passed:   1,
		Failed:   1,
		Skipped:  1,
		Duration: 120 * time.Millisecond,
		Results: []*runner.RequestResult{
			{Name: "Create Job", Passed: true, Duration: 80 * time.Millisecond},
			{
				Name:     "Get Job",
				Duration: 40 * time.Millisecond,
				Expectation: &runner.ExpectationResult{
					ExpectedStatus: 200,
					ActualStatus:   200,
					StatusPassed:   true,
					BodyMismatches: []jsonmatch.Mismatch{
						{Path: "$.state", Message: `String mismatch. Expected "done", got "failed".`},
					},
				},
			},
			{Name: "Cleanup", Skipped: true, SkipReason: "dependency failed"},
		},
	}
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatResult(sampleResult())

	out := buf.String()
	assert.Contains(t, out, "Running: api.http")
	assert.Contains(t, out, "✓ Create Job")
	assert.Contains(t, out, "✗ Get Job")
	assert.Contains(t, out, "$.state: String mismatch.")
	assert.Contains(t, out, "- Cleanup (dependency failed)")
	assert.Contains(t, out, "1 passed")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "3 total")
}

func TestConsoleFormatError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	f.FormatError(errors.New("connection refused"))
	assert.Contains(t, buf.String(), "connection refused")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(150*time.Millisecond))

	var report JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 1, report.Summary.Skipped)
	require.Len(t, report.Tests, 3)
	assert.Equal(t, []string{`$.state: String mismatch. Expected "done", got "failed".`}, report.Tests[1].Mismatches)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(150*time.Millisecond))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `tests="3"`)
	assert.Contains(t, out, `failures="1"`)
	assert.Contains(t, out, "Expectation failed")
	assert.Contains(t, out, "$.state")
}
