package jsonmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatch_Identical(t *testing.T) {
	doc := `{"id": 1, "name": "widget", "tags": ["a", "b"], "active": true, "meta": null}`

	result, err := ExactMatch(doc, doc)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Empty(t, result.Mismatches)
	assert.Empty(t, result.Extracted)
}

func TestExactMatch_TokenExtraction(t *testing.T) {
	result, err := ExactMatch(
		`{"id":"[[JOBID]]","status":"pending"}`,
		`{"id":"abc-123","status":"pending"}`)
	require.NoError(t, err)

	assert.True(t, result.Matched)
	require.Contains(t, result.Extracted, "JOBID")
	assert.Equal(t, "abc-123", result.Extracted["JOBID"].String())
}

func TestExactMatch_BareTokenMatchesAnyKind(t *testing.T) {
	tests := []struct {
		name   string
		actual string
		raw    string
	}{
		{"string", `{"v": "abc"}`, `"abc"`},
		{"number", `{"v": 42.5}`, `42.5`},
		{"boolean", `{"v": false}`, `false`},
		{"null", `{"v": null}`, `null`},
		{"object", `{"v": {"x": 1}}`, `{"x": 1}`},
		{"array", `{"v": [1, 2]}`, `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExactMatch(`{"v": [[CAPTURED]]}`, tt.actual)
			require.NoError(t, err)
			assert.True(t, result.Matched, "mismatches: %v", result.Mismatches)
			require.Contains(t, result.Extracted, "CAPTURED")
			assert.Equal(t, tt.raw, result.Extracted["CAPTURED"].Raw)
		})
	}
}

func TestExactMatch_ExtractionSurvivesMismatch(t *testing.T) {
	result, err := ExactMatch(
		`{"id": [[ID]], "status": "done"}`,
		`{"id": 7, "status": "pending"}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Contains(t, result.Extracted, "ID")
	assert.Equal(t, int64(7), result.Extracted["ID"].Int())
}

func TestExactMatch_TokenInSkippedBranchNotExtracted(t *testing.T) {
	// The expected member is an object but the actual is a string, so the
	// comparator never descends to the placeholder inside it.
	result, err := ExactMatch(
		`{"job": {"id": [[ID]]}}`,
		`{"job": "gone"}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	assert.NotContains(t, result.Extracted, "ID")
}

func TestExactMatch_ExtraProperty(t *testing.T) {
	result, err := ExactMatch(`{"a":1}`, `{"a":1,"b":2}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.b", result.Mismatches[0].Path)
	assert.Equal(t, "Extra property.", result.Mismatches[0].Message)
}

func TestSubsetMatch_ExtraPropertyIgnored(t *testing.T) {
	result, err := SubsetMatch(`{"a":1}`, `{"a":1,"b":2}`)
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestExactMatch_MissingProperty(t *testing.T) {
	result, err := ExactMatch(`{"a":1,"b":2}`, `{"a":1}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.b", result.Mismatches[0].Path)
	assert.Equal(t, "Missing property.", result.Mismatches[0].Message)
}

func TestExactMatch_NestedPathReporting(t *testing.T) {
	result, err := ExactMatch(`{"a":{"b":"x"}}`, `{"a":{"b":"y"}}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.a.b", result.Mismatches[0].Path)
	assert.Equal(t, `String mismatch. Expected "x", got "y".`, result.Mismatches[0].Message)
}

func TestExactMatch_ArrayIndexPath(t *testing.T) {
	result, err := ExactMatch(
		`{"user": {"roles": ["admin", "dev", "admin"]}}`,
		`{"user": {"roles": ["admin", "dev", "guest"]}}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, `$.user.roles[2]: String mismatch. Expected "admin", got "guest".`,
		result.Mismatches[0].String())
}

func TestExactMatch_NumberRawTextComparison(t *testing.T) {
	result, err := ExactMatch(`{"n":1}`, `{"n":1.0}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.n", result.Mismatches[0].Path)
	assert.Equal(t, "Number mismatch. Expected 1, got 1.0.", result.Mismatches[0].Message)
}

func TestExactMatch_BooleanValueMismatchIsNotTypeMismatch(t *testing.T) {
	for _, docs := range [][2]string{
		{`{"ok": true}`, `{"ok": false}`},
		{`{"ok": false}`, `{"ok": true}`},
	} {
		result, err := ExactMatch(docs[0], docs[1])
		require.NoError(t, err)
		assert.False(t, result.Matched)
		require.Len(t, result.Mismatches, 1)
		assert.Contains(t, result.Mismatches[0].Message, "Boolean mismatch")
	}
}

func TestExactMatch_TypeMismatchStopsDescent(t *testing.T) {
	result, err := ExactMatch(
		`{"a": {"b": 1, "c": 2}}`,
		`{"a": [1, 2]}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.a", result.Mismatches[0].Path)
	assert.Equal(t, "Type mismatch. Expected object, got array.", result.Mismatches[0].Message)
}

func TestExactMatch_ArrayLengthMismatch(t *testing.T) {
	result, err := ExactMatch(`{"a":[1,2]}`, `{"a":[1,2,3]}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.a", result.Mismatches[0].Path)
	assert.Equal(t, "Array length mismatch. Expected 2, got 3.", result.Mismatches[0].Message)
}

func TestSubsetMatch_ArrayPrefix(t *testing.T) {
	result, err := SubsetMatch(`{"a":[1,2]}`, `{"a":[1,2,3]}`)
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestSubsetMatch_ArrayOrderSensitive(t *testing.T) {
	result, err := SubsetMatch(`{"a":[2,1]}`, `{"a":[1,2]}`)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Len(t, result.Mismatches, 2)
}

func TestSubsetMatch_ExpectedArrayLongerThanActual(t *testing.T) {
	result, err := SubsetMatch(`{"a":[1,2,3]}`, `{"a":[1]}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "Array length mismatch. Expected at least 3, got 1.",
		result.Mismatches[0].Message)
}

func TestMatch_AllMismatchesReportedInOnePass(t *testing.T) {
	result, err := ExactMatch(
		`{"a": 1, "b": "x", "c": [true, false]}`,
		`{"a": 2, "b": "y", "c": [true, true]}`)
	require.NoError(t, err)

	assert.False(t, result.Matched)
	require.Len(t, result.Mismatches, 3)
	// Depth-first, expected member order, then array index order.
	assert.Equal(t, "$.a", result.Mismatches[0].Path)
	assert.Equal(t, "$.b", result.Mismatches[1].Path)
	assert.Equal(t, "$.c[1]", result.Mismatches[2].Path)
}

func TestMatch_ScalarRoots(t *testing.T) {
	result, err := ExactMatch(`"done"`, `"done"`)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	result, err = ExactMatch(`42`, `43`)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "$", result.Mismatches[0].Path)

	result, err = ExactMatch(`null`, `null`)
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestMatch_RootToken(t *testing.T) {
	result, err := ExactMatch(`[[EVERYTHING]]`, `{"any": ["thing", 1]}`)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.JSONEq(t, `{"any": ["thing", 1]}`, result.Extracted["EVERYTHING"].Raw)
}

func TestMatch_MalformedInput(t *testing.T) {
	_, err := ExactMatch(`{"a":`, `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected document")

	_, err = ExactMatch(`{}`, `{"a":`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actual document")
}

func TestMatch_SubsetAcceptsEveryExactMatch(t *testing.T) {
	docs := []string{
		`{"id": "[[ID]]", "nested": {"list": [1, 2, {"k": null}]}}`,
		`[1, "two", false]`,
		`{"empty": {}, "blank": []}`,
	}
	actuals := []string{
		`{"id": "x-1", "nested": {"list": [1, 2, {"k": null}]}}`,
		`[1, "two", false]`,
		`{"empty": {}, "blank": []}`,
	}

	for i := range docs {
		exact, err := ExactMatch(docs[i], actuals[i])
		require.NoError(t, err)
		require.True(t, exact.Matched)

		subset, err := SubsetMatch(docs[i], actuals[i])
		require.NoError(t, err)
		assert.True(t, subset.Matched)
	}
}

func TestMatch_Idempotent(t *testing.T) {
	expected := `{"id": [[ID]], "tags": ["a"], "n": 2}`
	actual := `{"id": 9, "tags": ["b"], "n": 2.0}`

	first, err := ExactMatch(expected, actual)
	require.NoError(t, err)
	second, err := ExactMatch(expected, actual)
	require.NoError(t, err)

	assert.Equal(t, first.Matched, second.Matched)
	assert.Equal(t, first.Mismatches, second.Mismatches)
	assert.Equal(t, len(first.Extracted), len(second.Extracted))
	assert.Equal(t, first.Extracted["ID"].Raw, second.Extracted["ID"].Raw)
}

func TestMatch_PartialTokenIsLiteral(t *testing.T) {
	// A marker embedded in a longer string is not a placeholder.
	result, err := ExactMatch(`{"v": "id-[[X]]"}`, `{"v": "id-7"}`)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.Extracted)
}

func TestMatch_NullNotConfusedWithToken(t *testing.T) {
	result, err := ExactMatch(`{"v": null}`, `{"v": null}`)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	result, err = ExactMatch(`{"v": null}`, `{"v": "null"}`)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Contains(t, result.Mismatches[0].Message, "Type mismatch")
}
