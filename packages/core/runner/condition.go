package runner

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/edouardp/ApiTest/packages/core/parser"
)

// evaluateCondition decides whether a request guarded by @if or @unless
// should run. Expressions see the resolver's variables and captures.
func (r *Runner) evaluateCondition(cond *parser.Condition) (bool, error) {
	out, err := expr.Eval(cond.Expression, r.resolver.Values())
	if err != nil {
		return false, fmt.Errorf("evaluating condition %q: %w", cond.Expression, err)
	}

	truthy := isTruthy(out)
	if cond.Type == parser.ConditionUnless {
		return !truthy, nil
	}
	return truthy, nil
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
