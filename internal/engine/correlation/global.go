package correlation

import (
	"github.com/dverna/alarm-guardian/internal/domain/event"
)

// Default cross-zone constants, overridable via configuration.
const (
	// DefaultGlobalThreshold is the global score at which the cross-zone
	// accumulator confirms.
	DefaultGlobalThreshold = 200
	// CrossZoneNumerator / CrossZoneDenominator express the 1.5x cross-zone
	// multiplier in integer arithmetic, truncating the contribution.
	CrossZoneNumerator   = 3
	CrossZoneDenominator = 2
)

// Contribution is one event's entry in the global audit trail, with the
// multiplier annotation for the confirmation payload.
type Contribution struct {
	// Event is the accepted sensor event.
	Event *event.SensorEvent
	// Value is the multiplier-adjusted score added to the global total.
	Value int
	// Multiplied is true when the cross-zone multiplier applied.
	Multiplied bool
}

// GlobalCorrelator owns the cross-zone accumulator for a session. It has no
// timer: the global score never expires within a session and only resets on
// disarm, explicit reset, or session teardown.
type GlobalCorrelator struct {
	// threshold is the global confirmation threshold.
	threshold int

	// score is the multiplier-adjusted sum of every event accepted this
	// session, irrespective of zone-local resets.
	score int
	// firstZoneID is the zone of the first accepted event; immutable for
	// the session's lifetime. Empty until the first event arrives.
	firstZoneID string
	// trail is the append-only audit log of accepted contributions.
	trail []Contribution
	// confirmed is set once the threshold is met; terminal for the session.
	confirmed bool
}

// NewGlobalCorrelator creates the per-session cross-zone accumulator.
// A non-positive threshold falls back to DefaultGlobalThreshold.
func NewGlobalCorrelator(threshold int) *GlobalCorrelator {
	if threshold <= 0 {
		threshold = DefaultGlobalThreshold
	}

	return &GlobalCorrelator{
		threshold: threshold,
	}
}

// Accept adds an event to the global accumulator. Events from the first
// zone of the session contribute their plain score; events from any other
// zone contribute score x 1.5, truncated to integer. The score only ever
// increases within a session.
func (g *GlobalCorrelator) Accept(e *event.SensorEvent) Outcome {
	if g.confirmed {
		return Rejected
	}

	crossZone := g.firstZoneID != "" && g.firstZoneID != e.ZoneID
	if g.firstZoneID == "" {
		g.firstZoneID = e.ZoneID
	}

	value := e.Score
	if crossZone {
		value = e.Score * CrossZoneNumerator / CrossZoneDenominator
	}

	g.score += value
	g.trail = append(g.trail, Contribution{
		Event:      e,
		Value:      value,
		Multiplied: crossZone,
	})

	if g.score >= g.threshold {
		g.confirmed = true

		return Confirmed
	}

	return Accumulated
}

// Score returns the current global score.
func (g *GlobalCorrelator) Score() int {
	return g.score
}

// Threshold returns the configured global threshold.
func (g *GlobalCorrelator) Threshold() int {
	return g.threshold
}

// FirstZoneID returns the zone of the first accepted event, or "" before
// any event was accepted.
func (g *GlobalCorrelator) FirstZoneID() string {
	return g.firstZoneID
}

// Confirmed reports whether the cross-zone path confirmed this session.
func (g *GlobalCorrelator) Confirmed() bool {
	return g.confirmed
}

// Trail returns a copy of the audit trail of accepted contributions.
func (g *GlobalCorrelator) Trail() []Contribution {
	cloned := make([]Contribution, len(g.trail))
	copy(cloned, g.trail)

	return cloned
}

// Reset clears the accumulator. Only session teardown and the explicit
// statistics reset command call this, never a zone-local window expiry.
func (g *GlobalCorrelator) Reset() {
	g.score = 0
	g.firstZoneID = ""
	g.trail = nil
	g.confirmed = false
}
