// Package statemachine implements the top-level alarm state machine:
// arming with exit delay, entry delay buffering for perimeter trips,
// pre-alarm, confirmation, panel-acknowledged triggering and the fault
// state. Delay expiries are epoch-tagged so firings that outlive the
// state they targeted degrade to no-ops.
package statemachine
