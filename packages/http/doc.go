// Package http executes the HTTP requests described by scenario files.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and redirect handling
//   - Request building from the parsed AST, with {{NAME}} resolution
//   - Basic, bearer and API key authentication
//   - Response capture with duration tracking
package http
