// Package builtin provides built-in functions for use in test files.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(): Current time in RFC 3339
//   - date(format): Current date, formatted
//   - timestamp() / timestampMs(): Current Unix timestamp
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - randomEmail(): Random email address
//   - base64(value), sha256(value), urlEncode(value): Encoding helpers
//
// Functions are invoked using the {{functionName(args)}} syntax in test files.
package builtin
