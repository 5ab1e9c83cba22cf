// Package cmd implements the apitest CLI commands using Cobra.
//
// Available commands:
//   - run: Execute API tests from .http files
//   - validate: Check test file syntax without executing
//   - list: Display all tests defined in files
//   - serve: Start a mock server backed by test files
//   - init: Create a new apitest project with example files
//   - version: Show apitest version information
//
// The CLI supports flags for filtering, report formatting, parallel
// execution, snapshot updates, and watch mode for development workflows.
package cmd
