// Package session owns the server-side credential lifecycle: opaque session
// ids with sliding expiry, single-use refresh ids with rotation, and a
// per-user index for bulk revocation.
//
// # Architecture boundaries
//
// The registry talks only to a [kv.Store]. It knows nothing about cookies,
// headers or signed tokens; those live in the root package.
//
// # What this package must NOT do
//
//   - Treat a missing user-index entry as proof that a session is invalid.
//   - Surface malformed stored records to callers (they read as absent).
//   - Retry store calls. Retries belong to the store implementation.
package session
