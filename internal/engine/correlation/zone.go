package correlation

import (
	"time"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/profile"
)

// Outcome is the result of offering an event to a correlator.
type Outcome int

// Possible outcomes.
const (
	// Rejected means the event was filtered out before scoring.
	Rejected Outcome = iota
	// Accumulated means the event was scored without confirming.
	Accumulated
	// Confirmed means the event completed the correlator's rule.
	Confirmed
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Accumulated:
		return "accumulated"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Sensor is the per-sensor classification within a zone.
type Sensor struct {
	// ID identifies the sensor.
	ID string
	// Name is the display name used in notifications.
	Name string
	// Class is perimeter, interior or camera.
	Class event.Class
	// Scope restricts the sensor to specific armed modes.
	// Perimeter sensors are implicitly both-modes.
	Scope event.Scope
}

// Zone is the static configuration of one physical zone.
type Zone struct {
	// ID identifies the zone.
	ID string
	// Name is the zone display name.
	Name string
	// Profile is the confirmation profile the zone evaluates.
	Profile profile.Profile
	// Sensors maps sensor id to its classification.
	Sensors map[string]Sensor
	// ArmedModes lists the modes in which the zone participates.
	ArmedModes []alarm.Mode
	// Window is the correlation window duration.
	Window time.Duration
	// WindowMultiplier scales adaptive windows for the zone, 0 means 1.0.
	WindowMultiplier float64
}

// ActiveInMode reports whether the zone participates in the given mode.
func (z *Zone) ActiveInMode(mode alarm.Mode) bool {
	for _, m := range z.ArmedModes {
		if m == mode {
			return true
		}
	}

	return false
}

// SensorActive reports whether the given sensor scores in the given mode.
// Perimeter sensors are always in scope when the zone is armed at all.
func (z *Zone) SensorActive(sensorID string, mode alarm.Mode) bool {
	s, ok := z.Sensors[sensorID]
	if !ok {
		return false
	}

	if s.Class == event.ClassPerimeter {
		return true
	}

	return s.Scope.ActiveInMode(mode)
}

// ZoneCorrelator owns one zone's event log, running score and correlation
// window for the current session. It carries no timer of its own: the
// session schedules window expiries and injects them back as epoch-tagged
// commands, so a stale expiry is a no-op rather than a race.
type ZoneCorrelator struct {
	// zone is the static zone configuration.
	zone *Zone

	// events is the ordered log of accepted events since the last reset.
	events []*event.SensorEvent
	// score is the unmultiplied sum of event scores in the current window.
	score int
	// confirmed is set once the profile rule is satisfied; it is terminal
	// for the session.
	confirmed bool
	// windowOpen tracks whether a correlation window is currently live.
	windowOpen bool
	// epoch increments on every window start, tagging expiry commands.
	epoch uint64
}

// NewZoneCorrelator creates the per-session correlator for a zone.
func NewZoneCorrelator(zone *Zone) *ZoneCorrelator {
	return &ZoneCorrelator{
		zone: zone,
	}
}

// Zone returns the static zone configuration.
func (c *ZoneCorrelator) Zone() *Zone {
	return c.zone
}

// Score returns the current local score.
func (c *ZoneCorrelator) Score() int {
	return c.score
}

// Events returns a copy of the current window's event log.
func (c *ZoneCorrelator) Events() []*event.SensorEvent {
	cloned := make([]*event.SensorEvent, len(c.events))
	for i, e := range c.events {
		cloned[i] = e.Clone()
	}

	return cloned
}

// Confirmed reports whether the zone has confirmed this session.
func (c *ZoneCorrelator) Confirmed() bool {
	return c.confirmed
}

// WindowOpen reports whether a correlation window is live.
func (c *ZoneCorrelator) WindowOpen() bool {
	return c.windowOpen
}

// Epoch returns the current window epoch. Expiry commands must carry it
// back so stale timers can be discarded.
func (c *ZoneCorrelator) Epoch() uint64 {
	return c.epoch
}

// Accept offers an event to the zone. It returns the outcome and whether
// this event opened a new correlation window (the caller must then schedule
// the window expiry for the returned epoch).
//
// Rejection covers sensors unknown to the zone, zones not participating in
// the current mode, and mode-filtered sensors. Every accepted event is
// appended to the log, the score recomputed and the profile re-evaluated,
// not just at window boundaries.
func (c *ZoneCorrelator) Accept(e *event.SensorEvent, mode alarm.Mode) (Outcome, bool) {
	if c.confirmed {
		return Rejected, false
	}

	if !c.zone.ActiveInMode(mode) || !c.zone.SensorActive(e.SensorID, mode) {
		return Rejected, false
	}

	windowStarted := false
	if !c.windowOpen {
		c.windowOpen = true
		c.epoch++
		windowStarted = true
	}

	c.events = append(c.events, e)
	c.score += e.Score

	if c.zone.Profile.Confirms(c.score, c.events) {
		c.confirmed = true
		c.windowOpen = false

		return Confirmed, windowStarted
	}

	return Accumulated, windowStarted
}

// ExpireWindow applies a window expiry for the given epoch. A stale epoch,
// a confirmed zone or a closed window make it a no-op and return false.
// Otherwise the zone is hard-reset: log cleared, score zeroed.
func (c *ZoneCorrelator) ExpireWindow(epoch uint64) bool {
	if c.confirmed || !c.windowOpen || epoch != c.epoch {
		return false
	}

	c.reset()

	return true
}

// Reset discards the window state regardless of epoch, used on session
// teardown and on clean re-arm.
func (c *ZoneCorrelator) Reset() {
	c.confirmed = false
	c.reset()
}

func (c *ZoneCorrelator) reset() {
	c.events = nil
	c.score = 0
	c.windowOpen = false
}
