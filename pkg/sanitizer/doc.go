// Package sanitizer provides input normalization for reservation data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Emails: lowercase, trim whitespace
//   - Names: collapse whitespace, trim leading/trailing spaces
//   - Course types and venue labels: lowercase, special characters replaced
//     with underscores - "Rock Climbing" becomes "rock_climbing"
//   - Holder keys: trimmed and lowercased
package sanitizer
