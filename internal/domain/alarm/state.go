package alarm

import "time"

// State is the top-level alarm system state.
type State string

// All states the alarm system can be in. The machine is cyclic: none of
// these is terminal under normal operation, Fault is left only via an
// explicit clear-fault action.
const (
	StateDisarmed  State = "disarmed"
	StateArming    State = "arming"
	StateArmedAway State = "armed_away"
	StateArmedHome State = "armed_home"
	StatePending   State = "pending"
	StatePreAlarm  State = "pre_alarm"
	StateConfirmed State = "alarm_confirmed"
	StateTriggered State = "triggered"
	StateFault     State = "fault"
)

// Mode is the armed mode requested by an arm command.
type Mode string

// Supported armed modes.
const (
	ModeAway Mode = "armed_away"
	ModeHome Mode = "armed_home"
)

// State returns the armed state corresponding to the mode.
func (m Mode) State() State {
	if m == ModeHome {
		return StateArmedHome
	}

	return StateArmedAway
}

// IsValid reports whether the mode is one of the supported armed modes.
func (m Mode) IsValid() bool {
	return m == ModeAway || m == ModeHome
}

// Cause identifies what drove a state transition.
type Cause string

// Transition causes, recorded on every emitted transition.
const (
	CauseArm        Cause = "arm"
	CauseDisarm     Cause = "disarm"
	CauseTrigger    Cause = "trigger"
	CauseConfirm    Cause = "confirm"
	CauseFault      Cause = "fault"
	CauseReset      Cause = "reset"
	CauseTimeout    Cause = "timeout"
	CauseEntryDelay Cause = "entry_delay"
	CauseExitDelay  Cause = "exit_delay"
	CauseAbort      Cause = "abort"
	CausePanelAck   Cause = "panel_ack"
)

// Transition is an emitted state-machine transition with its timestamp and cause.
type Transition struct {
	// From is the state the machine left.
	From State
	// To is the state the machine entered.
	To State
	// Cause identifies what drove the transition.
	Cause Cause
	// At is when the transition happened.
	At time.Time
	// Sensor is the sensor identifier that triggered the transition, if any.
	Sensor string
	// Reason carries free-form detail (fault reason, manual trigger reason).
	Reason string
}

// IsArmed reports whether the state counts as armed, including the
// intermediate triggered states of an armed session.
func (s State) IsArmed() bool {
	switch s {
	case StateArmedAway, StateArmedHome, StatePending, StatePreAlarm, StateConfirmed, StateTriggered:
		return true
	default:
		return false
	}
}

// IsTriggered reports whether the state is one of the in-alarm states.
func (s State) IsTriggered() bool {
	switch s {
	case StatePending, StatePreAlarm, StateConfirmed, StateTriggered:
		return true
	default:
		return false
	}
}
