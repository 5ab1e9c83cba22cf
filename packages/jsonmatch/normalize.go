package jsonmatch

import "strings"

// NormalizeTokens rewrites bare [[NAME]] placeholders into quoted string
// literals so the template parses as JSON. A template author writing
//
//	"id": [[JOBID]]
//
// does not know whether the captured value will be a string or a number;
// quoting the marker defers that decision to the comparator. Markers that
// already sit inside a string literal are left untouched, so the rewrite
// is idempotent.
func NormalizeTokens(doc string) string {
	var b strings.Builder
	b.Grow(len(doc) + 16)

	inString := false
	for i := 0; i < len(doc); i++ {
		ch := doc[i]

		if inString {
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(doc) {
				i++
				b.WriteByte(doc[i])
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
		case '[':
			if end, ok := tokenEnd(doc, i); ok {
				b.WriteByte('"')
				b.WriteString(doc[i:end])
				b.WriteByte('"')
				i = end - 1
				continue
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

// tokenEnd returns the index just past a [[NAME]] marker starting at i,
// or false if the text at i is not a complete marker.
func tokenEnd(doc string, i int) (int, bool) {
	if i+1 >= len(doc) || doc[i+1] != '[' {
		return 0, false
	}
	j := i + 2
	for j < len(doc) && isWordChar(doc[j]) {
		j++
	}
	if j == i+2 {
		return 0, false
	}
	if j+1 < len(doc) && doc[j] == ']' && doc[j+1] == ']' {
		return j + 2, true
	}
	return 0, false
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z')
}
