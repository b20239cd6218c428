// Package event defines the classified sensor event model consumed by the
// correlation engine: semantic sensor types with their fixed scores, the
// mode-scope contract, and the immutable SensorEvent fact.
package event
