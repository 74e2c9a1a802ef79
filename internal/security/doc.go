// Package security derives a posture report from engine configuration so
// operators can log or assert the effective hardening at startup.
package security
