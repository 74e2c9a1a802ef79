// Package internal holds helpers private to goSession: random token
// generation and constant-time secret comparison.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations)
//   - flows: pure-function orchestration of request resolution and logout
//   - metrics: lock-free counters and the resolve latency histogram
//   - rate: fixed-window failed-login throttle over the credential store
//   - security: configuration posture report
package internal
