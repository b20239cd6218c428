// Package alarm contains core domain types for the alarm system:
// states, armed modes, and the transitions emitted by the state machine.
package alarm
