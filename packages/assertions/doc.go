// Package assertions evaluates the expect lines of a request against the
// response it produced. Subjects address the status code, duration,
// headers or body paths; operators cover equality, numeric comparison,
// string and collection checks, JSON Schema validation and snapshots.
package assertions
