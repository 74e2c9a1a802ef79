// Package goSession manages the lifecycle of session credentials: issuing,
// validating, rotating and revoking opaque session ids and refresh ids, and
// optionally self-contained signed tokens.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config],
// the two credential strategies ([SessionStrategy], [TokenStrategy]), the
// [Bridge] between them, and the [Resolver] that authenticates requests.
// Storage lives behind [kv.Store]; the session key families are owned by
// [session.Registry]. Request resolution and logout orchestration live in
// internal/flows and are not exported.
//
// The core never writes HTTP responses. Resolve and Login return cookie
// [Mutations] for the caller to apply; package middleware does this for
// net/http and gRPC servers.
//
// # Error contract
//
// Rejected credentials are results, not errors. The only error a credential
// check returns is one wrapping [ErrStorageUnavailable], so a store outage is
// never mistaken for a logged-out user.
//
// # Login throttling
//
// With [RateLimitConfig.Enabled], failed logins are counted per identifier
// (and optionally per client IP) in the credential store, and Login answers
// RATE_LIMITED once the budget is spent. The store must implement
// [kv.Counter].
package goSession
