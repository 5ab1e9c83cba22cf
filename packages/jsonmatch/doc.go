// Package jsonmatch compares a JSON template against a captured JSON
// document, extracting [[NAME]] placeholder values along the way.
//
// Two entry points share one pipeline: ExactMatch requires the actual
// document to be structurally identical to the template, SubsetMatch
// allows the actual document to carry extra object members. In both modes
// a template string of the form [[NAME]] matches any value at that
// position and records it in the result's extraction map, so a response's
// generated ids and timestamps can feed later requests in a scenario.
//
// Mismatches are accumulated, never thrown: a comparison reports every
// discrepancy it finds in one pass, each qualified by a JSON path rooted
// at $. Only malformed input is an error.
package jsonmatch
