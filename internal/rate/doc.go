// Package rate throttles failed logins with fixed-window counters kept in
// the credential store.
//
// # Window semantics
//
// The first failure arms the window TTL; later failures only increment.
// Key layout under the configured prefix:
//   - ratelimit:login:<identifier>  failed logins per identifier
//   - ratelimit:ip:<ip>             failed logins per client IP
//
// A login is refused once a counter reaches MaxLoginAttempts. Storage
// errors are returned as-is (wrapping kv.ErrUnavailable) so the caller can
// fail closed.
package rate
