// Package guardian is the alarm intelligence core: one serialized command
// stream owning the state machine, the active session and the escalation
// controller. Sensor events, operator commands and timer expiries all flow
// through the same stream, so no mutation ever races another.
package guardian
