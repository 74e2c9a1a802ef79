// Package middleware adapts the session engine to net/http.
//
// [Guard] resolves every request through the engine, writes the cookie
// mutations the engine asks for, and rejects requests that do not
// authenticate. [Optional] resolves without rejecting. [RequireRole] adds a
// role check on top of Guard.
//
// Requests with a safe method (GET, HEAD, OPTIONS, TRACE) are not treated as
// mutations and skip the CSRF double-submit check.
//
// This package does no credential work of its own. It translates HTTP into a
// [goSession.Request] and a [goSession.Resolution] back into HTTP. The gRPC
// counterpart lives in middleware/grpcauth.
package middleware
