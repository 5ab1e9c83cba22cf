package env

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Variables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("baseUrl", "https://api.example.com")
	r.SetVariable("limit", 10)

	assert.Equal(t, "https://api.example.com/jobs?limit=10",
		r.Resolve("{{baseUrl}}/jobs?limit={{limit}}"))
}

func TestResolver_CapturesWinOverVariables(t *testing.T) {
	r := NewResolver()
	r.SetVariable("id", "static")
	r.SetCapture("submitJob", "id", "abc-123")

	assert.Equal(t, "abc-123", r.Resolve("{{id}}"))
	assert.Equal(t, "abc-123", r.Resolve("{{submitJob.id}}"))
}

func TestResolver_NumericCaptureSubstitution(t *testing.T) {
	r := NewResolver()
	r.SetCapture("", "jobId", float64(42))
	r.SetCapture("", "score", 9.5)

	assert.Equal(t, "/jobs/42", r.Resolve("/jobs/{{jobId}}"))
	assert.Equal(t, "9.5", r.Resolve("{{score}}"))
}

func TestResolver_EnvironmentVariables(t *testing.T) {
	t.Setenv("APITEST_TEST_TOKEN", "sekret")
	r := NewResolver()

	assert.Equal(t, "Bearer sekret", r.Resolve("Bearer {{$APITEST_TEST_TOKEN}}"))
}

func TestResolver_UnresolvedLeftVerbatim(t *testing.T) {
	r := NewResolver()
	var warned []string
	r.SetWarnFunc(func(format string, args ...any) {
		warned = append(warned, format)
	})

	assert.Equal(t, "{{missing}}", r.Resolve("{{missing}}"))
	assert.Len(t, warned, 1)
}

func TestResolver_BuiltinFunctions(t *testing.T) {
	r := NewResolver()
	out := r.Resolve("{{uuid()}}")
	assert.NotEqual(t, "{{uuid()}}", out)
	assert.Len(t, out, 36)
}

func TestResolver_Clone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")
	r.SetCapture("", "b", "2")

	clone := r.Clone()
	clone.SetVariable("a", "changed")

	assert.Equal(t, "1", r.Resolve("{{a}}"))
	assert.Equal(t, "changed", clone.Resolve("{{a}}"))
	assert.Equal(t, "2", clone.Resolve("{{b}}"))
}

func TestResolver_Values(t *testing.T) {
	r := NewResolver()
	r.SetVariable("env", "staging")
	r.SetCapture("", "env", "prod")

	values := r.Values()
	assert.Equal(t, "prod", values["env"])
}

func TestLoadEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/.env", []byte("SHARED=base\nTOKEN=dev\n"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/.env.staging", []byte("TOKEN=staging\n"), 0o644))

	environment, err := LoadEnvironment(dir, "staging", map[string]map[string]any{
		"staging": {"configOnly": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "base", environment.Variables["SHARED"])
	assert.Equal(t, "staging", environment.Variables["TOKEN"])
	assert.Equal(t, true, environment.Variables["configOnly"])
}
