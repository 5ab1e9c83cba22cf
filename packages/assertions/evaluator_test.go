package assertions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/http"
	"github.com/edouardp/ApiTest/packages/snapshot"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
		Duration:   42 * time.Millisecond,
	}
}

func TestEvaluateStatus(t *testing.T) {
	resp := jsonResponse(200, `{}`)

	result := NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "status", Operator: parser.OpEquals, Expected: int64(200),
	})
	assert.True(t, result.Passed)

	result = NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "status", Operator: parser.OpLessThan, Expected: int64(300),
	})
	assert.True(t, result.Passed)
}

func TestEvaluateBodyPaths(t *testing.T) {
	resp := jsonResponse(200, `{"job": {"id": 17, "state": "running", "tags": ["a", "b"]}}`)

	tests := []struct {
		name      string
		assertion *parser.Assertion
		passed    bool
	}{
		{"equals", &parser.Assertion{Subject: "body.job.id", Operator: parser.OpEquals, Expected: int64(17)}, true},
		{"bare path", &parser.Assertion{Subject: "job.state", Operator: parser.OpEquals, Expected: "running"}, true},
		{"bracket index", &parser.Assertion{Subject: "body.job.tags[1]", Operator: parser.OpEquals, Expected: "b"}, true},
		{"exists", &parser.Assertion{Subject: "body.job.state", Operator: parser.OpExists}, true},
		{"not exists", &parser.Assertion{Subject: "body.job.missing", Operator: parser.OpNotExists}, true},
		{"missing fails exists", &parser.Assertion{Subject: "body.job.missing", Operator: parser.OpExists}, false},
		{"length", &parser.Assertion{Subject: "body.job.tags", Operator: parser.OpLength, Expected: int64(2)}, true},
		{"includes", &parser.Assertion{Subject: "body.job.tags", Operator: parser.OpIncludes, Expected: "a"}, true},
		{"in", &parser.Assertion{Subject: "body.job.state", Operator: parser.OpIn, Expected: []any{"queued", "running"}}, true},
		{"type", &parser.Assertion{Subject: "body.job", Operator: parser.OpType, Expected: "object"}, true},
		{"matches", &parser.Assertion{Subject: "body.job.state", Operator: parser.OpMatches, Expected: "^run"}, true},
		{"wrong value", &parser.Assertion{Subject: "body.job.id", Operator: parser.OpEquals, Expected: int64(99)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewEvaluator(resp).Evaluate(tt.assertion)
			assert.Equal(t, tt.passed, result.Passed, result.Message)
		})
	}
}

func TestEvaluateHeader(t *testing.T) {
	resp := jsonResponse(200, `{}`)

	result := NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "header Content-Type", Operator: parser.OpContains, Expected: "json",
	})
	assert.True(t, result.Passed)

	result = NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "header X-Missing", Operator: parser.OpNotExists,
	})
	assert.True(t, result.Passed)
}

func TestEvaluateDuration(t *testing.T) {
	resp := jsonResponse(200, `{}`)

	result := NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "duration", Operator: parser.OpLessThan, Expected: int64(1000),
	})
	assert.True(t, result.Passed)
}

func TestNumericEqualityAcrossForms(t *testing.T) {
	resp := jsonResponse(200, `{"count": 3}`)

	// assertion values compare numerically, unlike body templates
	result := NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "body.count", Operator: parser.OpEquals, Expected: 3.0,
	})
	assert.True(t, result.Passed)
}

func TestEvaluateNonJSONBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       []byte("pong"),
	}

	result := NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpEquals, Expected: "pong",
	})
	assert.True(t, result.Passed)

	result = NewEvaluator(resp).Evaluate(&parser.Assertion{
		Subject: "body.anything", Operator: parser.OpExists,
	})
	assert.False(t, result.Passed)
}

func TestEvaluateSchema(t *testing.T) {
	dir := t.TempDir()
	schema := `{
		"type": "object",
		"properties": {"id": {"type": "number"}},
		"required": ["id"]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.schema.json"), []byte(schema), 0o644))

	resp := jsonResponse(200, `{"id": 5}`)
	result := NewEvaluator(resp, WithBaseDir(dir)).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSchema, Expected: "job.schema.json",
	})
	assert.True(t, result.Passed, result.Message)

	resp = jsonResponse(200, `{"name": "no id"}`)
	result = NewEvaluator(resp, WithBaseDir(dir)).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSchema, Expected: "job.schema.json",
	})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "schema validation failed")
}

func TestEvaluateSchemaPathTraversal(t *testing.T) {
	dir := t.TempDir()
	resp := jsonResponse(200, `{}`)

	result := NewEvaluator(resp, WithBaseDir(dir)).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSchema, Expected: "../outside.json",
	})
	assert.False(t, result.Passed)
	assert.Contains(t, result.Message, "outside allowed directory")
}

func TestEvaluateSnapshot(t *testing.T) {
	dir := t.TempDir()
	manager := snapshot.NewManager(dir, true)

	resp := jsonResponse(200, `{"id": 1}`)
	result := NewEvaluator(resp, WithSnapshots(manager, "api.http", "Get Job")).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSnapshot,
	})
	require.True(t, result.Passed, result.Message)

	// second run without update mode compares against the stored body
	manager = snapshot.NewManager(dir, false)
	result = NewEvaluator(resp, WithSnapshots(manager, "api.http", "Get Job")).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSnapshot,
	})
	assert.True(t, result.Passed, result.Message)

	other := jsonResponse(200, `{"id": 2}`)
	result = NewEvaluator(other, WithSnapshots(manager, "api.http", "Get Job")).Evaluate(&parser.Assertion{
		Subject: "body", Operator: parser.OpSnapshot,
	})
	assert.False(t, result.Passed)
}

func TestEvaluateAll(t *testing.T) {
	resp := jsonResponse(201, `{"id": 9, "state": "queued"}`)

	results := EvaluateAll(resp, []*parser.Assertion{
		{Subject: "status", Operator: parser.OpEquals, Expected: int64(201)},
		{Subject: "body.id", Operator: parser.OpGreaterThan, Expected: int64(0)},
		{Subject: "body.state", Operator: parser.OpEquals, Expected: "failed"},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, results[2].Passed)
}
