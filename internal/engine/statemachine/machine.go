package statemachine

import (
	"time"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
)

// TransitionFunc receives every executed transition, synchronously within
// the serialized command stream.
type TransitionFunc func(alarm.Transition)

// Machine is the top-level alarm state container. It owns the entry/exit
// delay bookkeeping but no goroutine timers: the owning service schedules
// expiries and injects them back with the epoch returned by the arming and
// pending operations, so late firings against torn-down state are no-ops.
//
// Not safe for concurrent use; all calls go through the session stream.
type Machine struct {
	// state is the current alarm state.
	state alarm.State
	// previous is the state before the last transition.
	previous alarm.State
	// changedAt is when the last transition happened.
	changedAt time.Time

	// mode is the armed mode of the current or pending arm cycle.
	mode alarm.Mode
	// pendingEvent is the perimeter event buffered during the entry delay.
	// It is not scored until the delay elapses.
	pendingEvent *event.SensorEvent

	// delayEpoch tags the live entry/exit delay timer; bumping it cancels
	// whatever timer is outstanding.
	delayEpoch uint64

	// faultReason is set while in the fault state.
	faultReason string
	// resumeState is the state to restore when the fault is cleared.
	resumeState alarm.State

	// onTransition receives every executed transition.
	onTransition TransitionFunc
}

// New creates a machine in the disarmed state.
func New(onTransition TransitionFunc) *Machine {
	if onTransition == nil {
		onTransition = func(alarm.Transition) {}
	}

	return &Machine{
		state:        alarm.StateDisarmed,
		previous:     alarm.StateDisarmed,
		changedAt:    time.Now(),
		onTransition: onTransition,
	}
}

// State returns the current state.
func (m *Machine) State() alarm.State {
	return m.state
}

// Previous returns the state before the last transition.
func (m *Machine) Previous() alarm.State {
	return m.previous
}

// Mode returns the armed mode of the current arm cycle.
func (m *Machine) Mode() alarm.Mode {
	return m.mode
}

// FaultReason returns the recorded fault reason, empty outside fault.
func (m *Machine) FaultReason() string {
	return m.faultReason
}

// PendingEvent returns the perimeter event buffered during entry delay.
func (m *Machine) PendingEvent() *event.SensorEvent {
	return m.pendingEvent
}

// DelayEpoch returns the epoch of the live delay timer.
func (m *Machine) DelayEpoch() uint64 {
	return m.delayEpoch
}

// transition executes a state change and notifies the callback.
func (m *Machine) transition(to alarm.State, cause alarm.Cause, sensor, reason string) {
	if m.state == to {
		return
	}

	m.previous = m.state
	m.state = to
	m.changedAt = time.Now()

	m.onTransition(alarm.Transition{
		From:   m.previous,
		To:     to,
		Cause:  cause,
		At:     m.changedAt,
		Sensor: sensor,
		Reason: reason,
	})
}

// cancelDelay invalidates any outstanding delay timer.
func (m *Machine) cancelDelay() {
	m.delayEpoch++
}

// Arm starts the exit delay: disarmed -> arming. The caller must schedule
// the exit-delay expiry for the returned epoch. Returns false when the
// machine is not disarmed or the mode is invalid.
func (m *Machine) Arm(mode alarm.Mode) (uint64, bool) {
	if m.state != alarm.StateDisarmed || !mode.IsValid() {
		return 0, false
	}

	m.mode = mode
	m.cancelDelay()
	m.transition(alarm.StateArming, alarm.CauseExitDelay, "", "")

	return m.delayEpoch, true
}

// ExitDelayElapsed completes arming: arming -> armed_away | armed_home.
// Stale epochs are no-ops.
func (m *Machine) ExitDelayElapsed(epoch uint64) bool {
	if m.state != alarm.StateArming || epoch != m.delayEpoch {
		return false
	}

	m.transition(m.mode.State(), alarm.CauseArm, "", "")

	return true
}

// PerimeterTripped starts the entry delay: armed_* -> pending. The tripping
// event is buffered, not scored, until the delay elapses. The caller must
// schedule the entry-delay expiry for the returned epoch.
func (m *Machine) PerimeterTripped(e *event.SensorEvent) (uint64, bool) {
	if m.state != alarm.StateArmedAway && m.state != alarm.StateArmedHome {
		return 0, false
	}

	m.pendingEvent = e
	m.cancelDelay()
	m.transition(alarm.StatePending, alarm.CauseEntryDelay, e.SensorID, "")

	return m.delayEpoch, true
}

// EntryDelayElapsed fires the buffered perimeter event: pending ->
// pre_alarm. The returned event must now be routed to the session for
// scoring. Stale epochs are no-ops.
func (m *Machine) EntryDelayElapsed(epoch uint64) (*event.SensorEvent, bool) {
	if m.state != alarm.StatePending || epoch != m.delayEpoch {
		return nil, false
	}

	e := m.pendingEvent
	m.pendingEvent = nil

	sensor := ""
	if e != nil {
		sensor = e.SensorID
	}

	m.transition(alarm.StatePreAlarm, alarm.CauseTrigger, sensor, "")

	return e, true
}

// InteriorTripped enters pre-alarm directly: armed_* -> pre_alarm. Interior
// and camera sensors get no entry delay.
func (m *Machine) InteriorTripped(e *event.SensorEvent) bool {
	if m.state != alarm.StateArmedAway && m.state != alarm.StateArmedHome {
		return false
	}

	m.transition(alarm.StatePreAlarm, alarm.CauseTrigger, e.SensorID, "")

	return true
}

// Confirm records a session confirmation: pre_alarm -> alarm_confirmed.
// A confirmation during the entry delay (interior events kept scoring while
// pending) short-circuits the delay the same way.
func (m *Machine) Confirm() bool {
	if m.state != alarm.StatePreAlarm && m.state != alarm.StatePending {
		return false
	}

	m.pendingEvent = nil

	m.cancelDelay()
	m.transition(alarm.StateConfirmed, alarm.CauseConfirm, "", "")

	return true
}

// WindowClosedUnconfirmed returns pre-alarm to the armed baseline after the
// correlation window expired without confirmation.
func (m *Machine) WindowClosedUnconfirmed() bool {
	if m.state != alarm.StatePreAlarm {
		return false
	}

	m.transition(m.mode.State(), alarm.CauseTimeout, "", "")

	return true
}

// PanelAck propagates the physical panel's acknowledgement:
// alarm_confirmed -> triggered.
func (m *Machine) PanelAck() bool {
	if m.state != alarm.StateConfirmed {
		return false
	}

	m.transition(alarm.StateTriggered, alarm.CausePanelAck, "", "")

	return true
}

// ManualTrigger forces confirmation from any armed state.
func (m *Machine) ManualTrigger(reason string) bool {
	switch m.state {
	case alarm.StateArmedAway, alarm.StateArmedHome, alarm.StatePending, alarm.StatePreAlarm:
		m.cancelDelay()
		m.pendingEvent = nil
		m.transition(alarm.StateConfirmed, alarm.CauseTrigger, "", reason)

		return true
	default:
		return false
	}
}

// Disarm handles the disarm command. During the entry delay it returns to
// the armed baseline (the triggering event is discarded, the caller resets
// session scores for a clean re-arm); in every other non-disarmed state it
// goes to disarmed. Returns the resulting state and whether a transition
// happened.
func (m *Machine) Disarm() (alarm.State, bool) {
	switch m.state {
	case alarm.StateDisarmed:
		return m.state, false
	case alarm.StatePending:
		m.cancelDelay()
		m.pendingEvent = nil
		m.transition(m.mode.State(), alarm.CauseDisarm, "", "")

		return m.state, true
	default:
		m.cancelDelay()
		m.pendingEvent = nil
		m.transition(alarm.StateDisarmed, alarm.CauseDisarm, "", "")

		return m.state, true
	}
}

// SetFault enters the fault state from anywhere, remembering the intended
// state to restore on clear. Only unrecoverable panel communication
// failures call this.
func (m *Machine) SetFault(reason string) bool {
	if m.state == alarm.StateFault {
		return false
	}

	// Collapse transient states to the intended baseline.
	switch {
	case m.state == alarm.StateDisarmed || m.state == alarm.StateArming:
		m.resumeState = alarm.StateDisarmed
	default:
		m.resumeState = m.mode.State()
	}

	m.faultReason = reason
	m.cancelDelay()
	m.pendingEvent = nil
	m.transition(alarm.StateFault, alarm.CauseFault, "", reason)

	return true
}

// ClearFault leaves the fault state, restoring the prior intended state.
func (m *Machine) ClearFault() (alarm.State, bool) {
	if m.state != alarm.StateFault {
		return m.state, false
	}

	m.faultReason = ""
	m.transition(m.resumeState, alarm.CauseReset, "", "")

	return m.state, true
}
