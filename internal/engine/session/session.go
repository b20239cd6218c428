package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/correlation"
)

// ConfirmationKind distinguishes the two confirmation paths.
type ConfirmationKind string

// Confirmation kinds.
const (
	// ConfirmedLocal means one zone satisfied its profile.
	ConfirmedLocal ConfirmationKind = "local"
	// ConfirmedCrossZone means the global accumulator reached its threshold.
	ConfirmedCrossZone ConfirmationKind = "cross_zone"
)

// Confirmation is the payload recorded when a session confirms, consumed by
// the escalation controller and the outputs.
type Confirmation struct {
	// Kind is the confirmation path.
	Kind ConfirmationKind
	// ZoneID is the confirming zone (for cross-zone: the zone of the last
	// contributing event).
	ZoneID string
	// ZoneName is the confirming zone's display name.
	ZoneName string
	// Sequence is the full ordered qualifying event sequence with scores
	// and multiplier annotations.
	Sequence []correlation.Contribution
	// TotalScore is the score that crossed the threshold.
	TotalScore int
	// At is when the confirmation happened.
	At time.Time
}

// Result is the outcome of routing one event through the session.
type Result struct {
	// Outcome is the zone correlator's verdict for the event.
	Outcome correlation.Outcome
	// ZoneID is the zone that handled the event, empty when no zone owns it.
	ZoneID string
	// WindowStarted is true when the event opened a new correlation window;
	// the caller must schedule its expiry for WindowEpoch.
	WindowStarted bool
	// WindowEpoch tags the opened window for expiry commands.
	WindowEpoch uint64
	// Confirmation is non-nil when this event confirmed the session.
	Confirmation *Confirmation
}

// Session is the aggregate root for one arm-to-disarm lifetime. It owns the
// global correlator and one zone correlator per zone active in the session's
// mode. It is not safe for concurrent use: the owning service serializes all
// mutations into a single processing stream.
type Session struct {
	// id identifies the session in logs and the audit trail.
	id uuid.UUID
	// mode is the armed mode of this session.
	mode alarm.Mode
	// startedAt is when the session was created.
	startedAt time.Time

	// global is the cross-zone accumulator.
	global *correlation.GlobalCorrelator
	// zones maps zone id to its correlator, only for zones active in mode.
	zones map[string]*correlation.ZoneCorrelator

	// confirmation is set once and freezes the session.
	confirmation *Confirmation
}

// New creates a session for the given mode, instantiating a correlator for
// every zone participating in that mode.
func New(mode alarm.Mode, zones []*correlation.Zone, globalThreshold int) *Session {
	s := &Session{
		id:        uuid.New(),
		mode:      mode,
		startedAt: time.Now(),
		global:    correlation.NewGlobalCorrelator(globalThreshold),
		zones:     make(map[string]*correlation.ZoneCorrelator, len(zones)),
	}

	for _, z := range zones {
		if z.ActiveInMode(mode) {
			s.zones[z.ID] = correlation.NewZoneCorrelator(z)
		}
	}

	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Mode returns the armed mode of the session.
func (s *Session) Mode() alarm.Mode {
	return s.mode
}

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Confirmed reports whether the session has confirmed. Confirmation is
// monotonic and terminal: a confirmed session accepts no further scoring.
func (s *Session) Confirmed() bool {
	return s.confirmation != nil
}

// Confirmation returns the recorded confirmation, nil before it happens.
func (s *Session) Confirmation() *Confirmation {
	return s.confirmation
}

// Zone returns the correlator for a zone id, nil when the zone is not part
// of this session's mode.
func (s *Session) Zone(zoneID string) *correlation.ZoneCorrelator {
	return s.zones[zoneID]
}

// GlobalScore returns the current cross-zone score.
func (s *Session) GlobalScore() int {
	return s.global.Score()
}

// FirstZoneID returns the first zone of the session, "" before any event.
func (s *Session) FirstZoneID() string {
	return s.global.FirstZoneID()
}

// ZoneScores returns a snapshot of each zone's current local score.
func (s *Session) ZoneScores() map[string]int {
	scores := make(map[string]int, len(s.zones))
	for id, c := range s.zones {
		scores[id] = c.Score()
	}

	return scores
}

// Process routes one classified event: first through the owning zone
// correlator (mode-filtered), then, if accepted there, through the global
// correlator. If either path confirms, the session freezes and the
// confirmation payload is recorded.
func (s *Session) Process(e *event.SensorEvent) Result {
	if s.Confirmed() {
		return Result{Outcome: correlation.Rejected}
	}

	zone := s.zones[e.ZoneID]
	if zone == nil {
		return Result{Outcome: correlation.Rejected}
	}

	outcome, started := zone.Accept(e, s.mode)
	result := Result{
		Outcome:       outcome,
		ZoneID:        e.ZoneID,
		WindowStarted: started,
		WindowEpoch:   zone.Epoch(),
	}

	if outcome == correlation.Rejected {
		return result
	}

	globalOutcome := s.global.Accept(e)

	switch {
	case outcome == correlation.Confirmed:
		result.Confirmation = s.confirmLocal(zone, e.Timestamp)
	case globalOutcome == correlation.Confirmed:
		result.Confirmation = s.confirmCrossZone(zone, e.Timestamp)
	}

	return result
}

// ExpireZoneWindow applies a zone window expiry injected from a timer.
// Stale epochs, frozen sessions and unknown zones are no-ops.
func (s *Session) ExpireZoneWindow(zoneID string, epoch uint64) bool {
	if s.Confirmed() {
		return false
	}

	zone := s.zones[zoneID]
	if zone == nil {
		return false
	}

	return zone.ExpireWindow(epoch)
}

// AnyWindowOpen reports whether any zone still has a live window. Used by
// the state machine to decide whether pre-alarm should fall back to armed.
func (s *Session) AnyWindowOpen() bool {
	for _, c := range s.zones {
		if c.WindowOpen() {
			return true
		}
	}

	return false
}

// ResetScores discards all correlation state, local and global, for a clean
// re-arm. The session itself persists.
func (s *Session) ResetScores() {
	for _, c := range s.zones {
		c.Reset()
	}

	s.global.Reset()
	s.confirmation = nil
}

// confirmLocal records a local confirmation: the qualifying sequence is the
// confirming zone's window log, unmultiplied.
func (s *Session) confirmLocal(zone *correlation.ZoneCorrelator, at time.Time) *Confirmation {
	events := zone.Events()
	sequence := make([]correlation.Contribution, len(events))
	for i, e := range events {
		sequence[i] = correlation.Contribution{Event: e, Value: e.Score}
	}

	s.confirmation = &Confirmation{
		Kind:       ConfirmedLocal,
		ZoneID:     zone.Zone().ID,
		ZoneName:   zone.Zone().Name,
		Sequence:   sequence,
		TotalScore: zone.Score(),
		At:         at,
	}

	return s.confirmation
}

// confirmCrossZone records a global confirmation: the qualifying sequence is
// the whole session audit trail with multiplier annotations.
func (s *Session) confirmCrossZone(zone *correlation.ZoneCorrelator, at time.Time) *Confirmation {
	s.confirmation = &Confirmation{
		Kind:       ConfirmedCrossZone,
		ZoneID:     zone.Zone().ID,
		ZoneName:   zone.Zone().Name,
		Sequence:   s.global.Trail(),
		TotalScore: s.global.Score(),
		At:         at,
	}

	return s.confirmation
}
