// Package jwt issues and verifies self-contained signed tokens that carry a
// user id and session metadata, and provides an optional kv-backed denylist
// for early revocation.
package jwt
