package runner

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/db"
)

// DBAssertionResult is the outcome of one >>>db assertion line.
type DBAssertionResult struct {
	Query    string
	Column   string
	Passed   bool
	Expected any
	Actual   any
	Message  string
}

// runDBAssertions connects to the request's database and checks every
// assertion. The connection string comes from @db on the request, falling
// back to the run config.
func (r *Runner) runDBAssertions(req *parser.Request) ([]*DBAssertionResult, error) {
	connStr := r.config.Database
	if req.Metadata != nil && req.Metadata.DBConnection != "" {
		connStr = req.Metadata.DBConnection
	}
	if connStr == "" {
		return nil, fmt.Errorf("request %q has db assertions but no database is configured", req.Name)
	}

	client, err := db.NewClient(r.resolver.Resolve(connStr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer client.Close()

	// run each distinct query once
	queryResults := make(map[string]*db.QueryResult)
	queryErrors := make(map[string]error)

	var results []*DBAssertionResult
	for _, assertion := range req.DBAssertions {
		query := r.resolver.Resolve(assertion.Query)

		queryResult, ok := queryResults[query]
		if !ok {
			if _, failed := queryErrors[query]; !failed {
				queryResult, err = client.Query(query)
				if err != nil {
					queryErrors[query] = err
				} else {
					queryResults[query] = queryResult
				}
			}
		}

		if queryErr, failed := queryErrors[query]; failed {
			results = append(results, &DBAssertionResult{
				Query:   query,
				Column:  assertion.Column,
				Message: fmt.Sprintf("query failed: %v", queryErr),
			})
			continue
		}

		result := r.evaluateDBAssertion(assertion, queryResults[query])
		result.Query = query
		results = append(results, result)
	}

	return results, nil
}

func (r *Runner) evaluateDBAssertion(assertion *parser.DBAssertion, queryResult *db.QueryResult) *DBAssertionResult {
	res := &DBAssertionResult{
		Column:   assertion.Column,
		Expected: assertion.Expected,
	}

	if len(queryResult.Rows) == 0 {
		res.Message = "query returned no rows"
		return res
	}

	row := queryResult.Rows[0]
	actual, ok := row[assertion.Column]
	if !ok {
		for col, val := range row {
			if strings.EqualFold(col, assertion.Column) {
				actual, ok = val, true
				break
			}
		}
	}
	if !ok {
		res.Message = fmt.Sprintf("column %q not found in result", assertion.Column)
		return res
	}
	res.Actual = actual

	expected := assertion.Expected
	if s, isStr := expected.(string); isStr {
		expected = r.resolver.Resolve(s)
	}

	passed, msg := compareDBValues(actual, assertion.Operator, expected)
	res.Passed = passed
	if !passed {
		res.Message = msg
	}
	return res
}

func compareDBValues(actual any, op parser.AssertionOperator, expected any) (bool, string) {
	switch op {
	case parser.OpEquals:
		return dbEquals(actual, expected)
	case parser.OpNotEquals:
		if passed, _ := dbEquals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case parser.OpGreaterThan, parser.OpGreaterOrEqual, parser.OpLessThan, parser.OpLessOrEqual:
		return dbCompareNumeric(actual, expected, op)
	case parser.OpContains:
		if strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v to contain %v", actual, expected)
	case parser.OpExists:
		if actual == nil {
			return false, "expected to exist"
		}
		return true, ""
	case parser.OpNotExists:
		if actual != nil {
			return false, "expected not to exist"
		}
		return true, ""
	default:
		return false, fmt.Sprintf("unsupported operator for db assertion: %s", op)
	}
}

func dbEquals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := dbFloat(actual)
	expectedNum, eOk := dbFloat(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func dbCompareNumeric(actual, expected any, op parser.AssertionOperator) (bool, string) {
	actualNum, aOk := dbFloat(actual)
	expectedNum, eOk := dbFloat(expected)

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

func dbFloat(v any) (float64, bool) {
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
