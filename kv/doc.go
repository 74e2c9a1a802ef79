// Package kv defines the key-value capability the session subsystem runs on
// and ships Redis, in-memory, SQL (SQLite, MySQL) and PostgreSQL backends.
//
// Every backend honours the same contract: values are opaque strings with a
// per-key TTL, Delete reports how many live keys it removed, and Keys lists
// live keys by prefix. Failures wrap [ErrUnavailable].
package kv
