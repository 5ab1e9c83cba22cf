// Package output formats run results for people and machines.
//
// Formats:
//   - Console: colored terminal output with per-path mismatch listings
//   - JSON: machine-readable report
//   - JUnit: XML for CI integration
//
// Formatters that accumulate results implement Flushable and emit their
// report once every file has run.
package output
