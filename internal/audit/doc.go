// Package audit implements asynchronous delivery of session lifecycle events.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, mode, user, session, IP.
//
// The engine decides which events to emit. This package only buffers and
// delivers them. Session ids are recorded for correlation; refresh ids and
// signed tokens never reach an event.
package audit
