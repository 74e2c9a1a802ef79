// Package device derives the device description stored in session metadata
// from a request's User-Agent and, optionally, its IP address via a MaxMind
// GeoIP2 City database.
package device
