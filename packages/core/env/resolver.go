package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/edouardp/ApiTest/packages/builtin"
)

var referencePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc receives notices about unresolved references.
type WarnFunc func(format string, args ...any)

// Resolver substitutes {{name}} references with captured values, declared
// variables, OS environment lookups ({{$VAR}}), and builtin function
// results ({{uuid()}}). Safe for concurrent use.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	captures  map[string]any
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		captures:  make(map[string]any),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc registers a callback for unresolved references.
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetCapture stores a value captured from a response. The value is
// reachable both as {{name}} and, when the request is named, as
// {{requestName.name}}.
func (r *Resolver) SetCapture(requestName, name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if requestName != "" {
		r.captures[requestName+"."+name] = value
	}
	r.captures[name] = value
}

func (r *Resolver) GetCapture(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.captures[name]
	return v, ok
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.captures[name]; ok {
		return v, true
	}
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// Values returns a merged snapshot of variables and captures, captures
// winning. Used as the evaluation environment for @if conditions.
func (r *Resolver) Values() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	merged := make(map[string]any, len(r.variables)+len(r.captures))
	for k, v := range r.variables {
		merged[k] = v
	}
	for k, v := range r.captures {
		merged[k] = v
	}
	return merged
}

// Resolve substitutes every {{...}} reference in the input. Unresolved
// references are left verbatim and reported through the warn callback.
func (r *Resolver) Resolve(input string) string {
	return referencePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		if strings.HasPrefix(expr, "$") {
			if val := os.Getenv(expr[1:]); val != "" {
				return val
			}
			r.warn("unresolved environment variable: %s", expr)
			return match
		}

		if strings.Contains(expr, "(") {
			if result, ok := r.funcs.Call(expr); ok {
				return fmt.Sprintf("%v", result)
			}
			r.warn("unresolved function call: %s", expr)
			return match
		}

		if val, ok := r.GetVariable(expr); ok {
			return stringify(val)
		}

		r.warn("unresolved variable: %s", expr)
		return match
	})
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.captures {
		clone.captures[k] = v
	}
	return clone
}

// stringify renders a captured value for substitution into request text.
// Floats captured from JSON keep their integer form when they carry no
// fraction, so {{id}} for 42 becomes "42", not "4.2e+01".
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", v)
	}
}
