// Package env resolves {{name}} references in scenario text.
//
// Resolution order: values captured from earlier responses, file and
// environment variables, {{$OS_VAR}} lookups, and {{fn(...)}} builtin
// function calls. Substitution happens before request text is sent and
// before expected-response templates reach the comparison engine.
package env
