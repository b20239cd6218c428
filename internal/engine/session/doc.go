// Package session implements the alarm session, the aggregate root for one
// arm-to-disarm lifetime. A session routes classified events through the
// per-zone correlators and the global accumulator, freezes on the first
// confirmation, and records the qualifying event sequence.
package session
