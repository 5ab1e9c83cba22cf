package assertions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/http"
	"github.com/edouardp/ApiTest/packages/snapshot"
)

// Result is the outcome of evaluating one assertion.
type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

// Evaluator checks a response against the `expect` lines of a request.
type Evaluator struct {
	response    *http.Response
	bodyJSON    gjson.Result
	bodyIsJSON  bool
	baseDir     string
	testFile    string
	requestName string
	snapshots   *snapshot.Manager
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithBaseDir sets the directory schema file paths resolve against.
func WithBaseDir(dir string) Option {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

// WithSnapshots wires a snapshot manager for the snapshot operator.
func WithSnapshots(m *snapshot.Manager, testFile, requestName string) Option {
	return func(e *Evaluator) {
		e.snapshots = m
		e.testFile = testFile
		e.requestName = requestName
	}
}

func NewEvaluator(resp *http.Response, opts ...Option) *Evaluator {
	e := &Evaluator{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.bodyIsJSON = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAll runs every assertion against the response.
func EvaluateAll(resp *http.Response, assertions []*parser.Assertion, opts ...Option) []*Result {
	e := NewEvaluator(resp, opts...)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = e.Evaluate(a)
	}
	return results
}

func (e *Evaluator) Evaluate(assertion *parser.Assertion) *Result {
	result := &Result{
		Subject:  assertion.Subject,
		Operator: assertion.Operator.String(),
		Expected: assertion.Expected,
	}

	actual, found := e.lookup(assertion.Subject)
	result.Actual = actual

	switch assertion.Operator {
	case parser.OpExists:
		if found {
			return pass(result)
		}
		return fail(result, fmt.Sprintf("expected %s to exist", assertion.Subject))
	case parser.OpNotExists:
		if found {
			return fail(result, fmt.Sprintf("expected %s not to exist", assertion.Subject))
		}
		return pass(result)
	}

	passed, msg := e.apply(actual, assertion.Operator, assertion.Expected)
	if assertion.Operator == parser.OpLength {
		result.Actual = lengthOf(actual)
	}
	if passed {
		return pass(result)
	}
	return fail(result, msg)
}

func pass(r *Result) *Result {
	r.Passed = true
	return r
}

func fail(r *Result, msg string) *Result {
	r.Passed = false
	r.Message = msg
	return r
}

// lookup resolves an assertion subject to a value. The second return is
// false when the subject names something absent from the response.
func (e *Evaluator) lookup(subject string) (any, bool) {
	switch {
	case subject == "status":
		return e.response.StatusCode, true
	case subject == "duration":
		return e.response.DurationMs(), true
	case strings.HasPrefix(subject, "header "):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header "))
		value := e.response.Header(name)
		return value, value != ""
	case subject == "body":
		if e.bodyIsJSON {
			return e.bodyJSON.Value(), true
		}
		return e.response.BodyString(), true
	case strings.HasPrefix(subject, "body."), strings.HasPrefix(subject, "body["):
		return e.bodyPath(strings.TrimPrefix(subject, "body"))
	default:
		// bare paths address the body
		return e.bodyPath(subject)
	}
}

func (e *Evaluator) bodyPath(path string) (any, bool) {
	if !e.bodyIsJSON {
		return nil, false
	}
	path = strings.TrimPrefix(path, ".")
	res := e.bodyJSON.Get(toGJSONPath(path))
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// toGJSONPath rewrites bracket indexing to gjson dot notation,
// e.g. "items[0].id" becomes "items.0.id".
func toGJSONPath(path string) string {
	return strings.TrimPrefix(bracketIndex.ReplaceAllString(path, ".$1"), ".")
}

func (e *Evaluator) apply(actual any, op parser.AssertionOperator, expected any) (bool, string) {
	switch op {
	case parser.OpEquals:
		return equals(actual, expected)
	case parser.OpNotEquals:
		if passed, _ := equals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case parser.OpGreaterThan, parser.OpGreaterOrEqual, parser.OpLessThan, parser.OpLessOrEqual:
		return compareNumeric(actual, expected, op)
	case parser.OpContains:
		return contains(actual, expected)
	case parser.OpNotContains:
		if passed, _ := contains(actual, expected); passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case parser.OpStartsWith:
		if strings.HasPrefix(stringify(actual), stringify(expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to start with %q", stringify(actual), stringify(expected))
	case parser.OpEndsWith:
		if strings.HasSuffix(stringify(actual), stringify(expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to end with %q", stringify(actual), stringify(expected))
	case parser.OpMatches:
		return matches(actual, expected)
	case parser.OpLength:
		return length(actual, expected)
	case parser.OpIncludes:
		return includes(actual, expected)
	case parser.OpNotIncludes:
		if passed, _ := includes(actual, expected); passed {
			return false, fmt.Sprintf("expected not to include %v", expected)
		}
		return true, ""
	case parser.OpIn:
		return in(actual, expected)
	case parser.OpNotIn:
		if passed, _ := in(actual, expected); passed {
			return false, fmt.Sprintf("expected %v not to be in %v", actual, expected)
		}
		return true, ""
	case parser.OpType:
		return typeCheck(actual, expected)
	case parser.OpSchema:
		return e.schema(actual, expected)
	case parser.OpSnapshot:
		return e.snapshot(expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	// numbers compare by value so 1 == 1.0 here
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if stringify(actual) == stringify(expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual, expected any, op parser.AssertionOperator) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case parser.OpGreaterThan:
		passed = actualNum > expectedNum
	case parser.OpGreaterOrEqual:
		passed = actualNum >= expectedNum
	case parser.OpLessThan:
		passed = actualNum < expectedNum
	case parser.OpLessOrEqual:
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual, expected any) (bool, string) {
	if strings.Contains(stringify(actual), stringify(expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q to contain %q", stringify(actual), stringify(expected))
}

func matches(actual, expected any) (bool, string) {
	pattern := strings.TrimSuffix(strings.TrimPrefix(stringify(expected), "/"), "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(stringify(actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q to match /%s/", stringify(actual), pattern)
}

func lengthOf(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := lengthOf(actual)
	if actualLen < 0 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}

	for _, item := range arr {
		if passed, _ := equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected a list for 'in', got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeCheck(actual, expected any) (bool, string) {
	expectedType := stringify(expected)
	var actualType string

	switch actual.(type) {
	case nil:
		actualType = "null"
	case bool:
		actualType = "boolean"
	case float64, float32, int, int64, int32:
		actualType = "number"
	case string:
		actualType = "string"
	case []any:
		actualType = "array"
	case map[string]any:
		actualType = "object"
	default:
		actualType = reflect.TypeOf(actual).String()
	}

	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

func (e *Evaluator) schema(actual, expected any) (bool, string) {
	schemaPath := stringify(expected)

	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}
	if err := checkPathWithinBase(schemaPath, e.baseDir); err != nil {
		return false, err.Error()
	}

	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return false, fmt.Sprintf("failed to read schema file: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(actualJSON),
	)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}

	if result.Valid() {
		return true, ""
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(errs, "; "))
}

func (e *Evaluator) snapshot(expected any) (bool, string) {
	if e.snapshots == nil {
		return false, "snapshot manager not configured"
	}

	snapshotName := ""
	if expected != nil {
		snapshotName = stringify(expected)
	}

	result := e.snapshots.Compare(e.testFile, e.requestName, snapshotName, e.response.BodyString())
	if result.Passed {
		return true, result.Message
	}
	return false, result.Message
}

// checkPathWithinBase rejects schema paths that escape the test directory.
func checkPathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	if f, ok := toFloat64(v); ok {
		return int(f), true
	}
	return 0, false
}
