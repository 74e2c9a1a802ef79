// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow (RunResolve, RunLogout, RunLogoutAll) takes a typed dependency
// struct of lookups and returns a classified result. Flows never own the
// registry, token manager or cookies; the engine maps their results onto
// decisions and cookie mutations.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency functions.
package flows
