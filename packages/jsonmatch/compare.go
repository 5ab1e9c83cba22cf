package jsonmatch

import (
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

var tokenPattern = regexp.MustCompile(`^\[\[(\w+)\]\]$`)

// kind classifies a JSON value for comparison. Booleans collapse into a
// single kind so that true vs false reads as a value mismatch, not a type
// mismatch.
type kind int

const (
	kindInvalid kind = iota
	kindNull
	kindBoolean
	kindNumber
	kindString
	kindArray
	kindObject
)

func (k kind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindBoolean:
		return "boolean"
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindArray:
		return "array"
	case kindObject:
		return "object"
	default:
		return "unknown"
	}
}

func kindOf(v gjson.Result) kind {
	switch v.Type {
	case gjson.Null:
		return kindNull
	case gjson.False, gjson.True:
		return kindBoolean
	case gjson.Number:
		return kindNumber
	case gjson.String:
		return kindString
	case gjson.JSON:
		if v.IsArray() {
			return kindArray
		}
		if v.IsObject() {
			return kindObject
		}
	}
	return kindInvalid
}

// matcher holds the accumulators for a single comparison call. All state
// is call-local; nothing survives the call.
type matcher struct {
	mode       Mode
	extracted  map[string]gjson.Result
	mismatches []Mismatch
}

func (m *matcher) report(path, format string, args ...any) {
	m.mismatches = append(m.mismatches, Mismatch{
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

// compare walks the expected and actual trees in lock-step. Precedence at
// each node: placeholder extraction, then kind check, then per-kind value
// comparison. A placeholder matches any actual value, null and containers
// included, and never produces a mismatch.
func (m *matcher) compare(expected, actual gjson.Result, path string) {
	if expected.Type == gjson.String {
		if sub := tokenPattern.FindStringSubmatch(expected.Str); sub != nil {
			m.extracted[sub[1]] = actual
			return
		}
	}

	ek, ak := kindOf(expected), kindOf(actual)
	if ek == kindInvalid || ak == kindInvalid {
		m.report(path, "Unsupported value.")
		return
	}
	if ek != ak {
		m.report(path, "Type mismatch. Expected %s, got %s.", ek, ak)
		return
	}

	switch ek {
	case kindObject:
		m.compareObject(expected, actual, path)
	case kindArray:
		m.compareArray(expected, actual, path)
	case kindString:
		if expected.Str != actual.Str {
			m.report(path, "String mismatch. Expected %q, got %q.", expected.Str, actual.Str)
		}
	case kindNumber:
		// Numbers compare by source text: 1 and 1.0 are different.
		if expected.Raw != actual.Raw {
			m.report(path, "Number mismatch. Expected %s, got %s.", expected.Raw, actual.Raw)
		}
	case kindBoolean:
		if expected.Bool() != actual.Bool() {
			m.report(path, "Boolean mismatch. Expected %v, got %v.", expected.Bool(), actual.Bool())
		}
	case kindNull:
		// Both null, nothing to check.
	}
}

func (m *matcher) compareObject(expected, actual gjson.Result, path string) {
	actMembers := make(map[string]gjson.Result)
	actual.ForEach(func(key, value gjson.Result) bool {
		actMembers[key.Str] = value
		return true
	})

	expNames := make(map[string]struct{})
	expected.ForEach(func(key, value gjson.Result) bool {
		name := key.Str
		expNames[name] = struct{}{}
		memberPath := path + "." + name

		av, ok := actMembers[name]
		if !ok {
			m.report(memberPath, "Missing property.")
			return true
		}
		m.compare(value, av, memberPath)
		return true
	})

	if m.mode == Exact {
		actual.ForEach(func(key, value gjson.Result) bool {
			if _, ok := expNames[key.Str]; !ok {
				m.report(path+"."+key.Str, "Extra property.")
			}
			return true
		})
	}
}

func (m *matcher) compareArray(expected, actual gjson.Result, path string) {
	ev := expected.Array()
	av := actual.Array()

	if m.mode == Exact && len(ev) != len(av) {
		m.report(path, "Array length mismatch. Expected %d, got %d.", len(ev), len(av))
		return
	}
	if m.mode == Subset && len(ev) > len(av) {
		m.report(path, "Array length mismatch. Expected at least %d, got %d.", len(ev), len(av))
		return
	}

	// Elements pair up by index: a subset array is a positional prefix of
	// the actual array, not an any-order containment check.
	for i := range ev {
		m.compare(ev[i], av[i], fmt.Sprintf("%s[%d]", path, i))
	}
}
