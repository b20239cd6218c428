package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/correlation"
	"github.com/dverna/alarm-guardian/internal/engine/profile"
)

// testZones builds two zones: a perimeter_plus day zone and a
// perimeter_only night zone, both armed in away mode only for the
// night zone's interior.
func testZones() []*correlation.Zone {
	return []*correlation.Zone{
		{
			ID:      "zone-day",
			Name:    "Day Zone",
			Profile: profile.PerimeterPlus,
			Sensors: map[string]correlation.Sensor{
				"front_door": {ID: "front_door", Name: "Front Door", Class: event.ClassPerimeter, Scope: event.ScopeBoth},
				"hall_pir":   {ID: "hall_pir", Name: "Hall PIR", Class: event.ClassInterior, Scope: event.ScopeBoth},
				"hall_radar": {ID: "hall_radar", Name: "Hall Radar", Class: event.ClassInterior, Scope: event.ScopeBoth},
			},
			ArmedModes: []alarm.Mode{alarm.ModeAway, alarm.ModeHome},
			Window:     time.Minute,
		},
		{
			ID:      "zone-night",
			Name:    "Night Zone",
			Profile: profile.PerimeterOnly,
			Sensors: map[string]correlation.Sensor{
				"bed_window":  {ID: "bed_window", Name: "Bedroom Window", Class: event.ClassPerimeter, Scope: event.ScopeBoth},
				"bed_terrace": {ID: "bed_terrace", Name: "Terrace Door", Class: event.ClassPerimeter, Scope: event.ScopeBoth},
			},
			ArmedModes: []alarm.Mode{alarm.ModeAway},
			Window:     time.Minute,
		},
	}
}

// sev builds a classified event for a sensor in a zone.
func sev(t *testing.T, sensorID string, typ event.Type, zoneID string) *event.SensorEvent {
	t.Helper()

	e, err := event.Classify(sensorID, sensorID, typ, zoneID, 0.9, time.Now())
	require.NoError(t, err)

	return e
}

// TestSessionLocalConfirmation routes contact then motion in one zone and
// expects a local confirmation with the ordered sequence.
func TestSessionLocalConfirmation(t *testing.T) {
	t.Parallel()

	s := New(alarm.ModeAway, testZones(), correlation.DefaultGlobalThreshold)

	r := s.Process(sev(t, "front_door", event.TypeContact, "zone-day"))
	require.Equal(t, correlation.Accumulated, r.Outcome)
	require.True(t, r.WindowStarted)

	r = s.Process(sev(t, "hall_pir", event.TypeMotion, "zone-day"))
	require.Equal(t, correlation.Confirmed, r.Outcome)
	require.NotNil(t, r.Confirmation)
	require.Equal(t, ConfirmedLocal, r.Confirmation.Kind)
	require.Equal(t, "zone-day", r.Confirmation.ZoneID)
	require.Equal(t, 110, r.Confirmation.TotalScore)
	require.Len(t, r.Confirmation.Sequence, 2)
	require.Equal(t, "front_door", r.Confirmation.Sequence[0].Event.SensorID)
	require.False(t, r.Confirmation.Sequence[0].Multiplied)

	// The session is frozen: further events are rejected.
	r = s.Process(sev(t, "bed_window", event.TypeContact, "zone-night"))
	require.Equal(t, correlation.Rejected, r.Outcome)
	require.True(t, s.Confirmed())
}

// TestSessionCrossZoneConfirmation replays the moving-intruder scenario
// across two zones, confirming globally at 220 while neither zone confirms
// locally.
func TestSessionCrossZoneConfirmation(t *testing.T) {
	t.Parallel()

	s := New(alarm.ModeAway, testZones(), correlation.DefaultGlobalThreshold)

	r := s.Process(sev(t, "bed_window", event.TypeContact, "zone-night"))
	require.Equal(t, correlation.Accumulated, r.Outcome)
	require.Equal(t, "zone-night", s.FirstZoneID())
	require.Equal(t, 70, s.GlobalScore())

	r = s.Process(sev(t, "hall_radar", event.TypeRadar, "zone-day"))
	require.Equal(t, correlation.Accumulated, r.Outcome)
	require.Equal(t, 160, s.GlobalScore())

	r = s.Process(sev(t, "hall_pir", event.TypeMotion, "zone-day"))
	require.NotNil(t, r.Confirmation)
	require.Equal(t, ConfirmedCrossZone, r.Confirmation.Kind)
	require.Equal(t, 220, r.Confirmation.TotalScore)
	require.Len(t, r.Confirmation.Sequence, 3)
	require.True(t, r.Confirmation.Sequence[1].Multiplied)
	require.Equal(t, 90, r.Confirmation.Sequence[1].Value)
}

// TestSessionWindowExpiryKeepsGlobal verifies that a zone reset leaves the
// global score untouched.
func TestSessionWindowExpiryKeepsGlobal(t *testing.T) {
	t.Parallel()

	s := New(alarm.ModeAway, testZones(), correlation.DefaultGlobalThreshold)

	r := s.Process(sev(t, "front_door", event.TypeContact, "zone-day"))
	require.True(t, r.WindowStarted)
	require.Equal(t, 70, s.GlobalScore())
	require.Equal(t, 70, s.ZoneScores()["zone-day"])

	require.True(t, s.ExpireZoneWindow("zone-day", r.WindowEpoch))
	require.Zero(t, s.ZoneScores()["zone-day"])
	require.Equal(t, 70, s.GlobalScore(), "global score survives zone-local resets")

	// The stale epoch is a no-op the second time.
	require.False(t, s.ExpireZoneWindow("zone-day", r.WindowEpoch))
	require.False(t, s.ExpireZoneWindow("zone-ghost", 1))
}

// TestSessionModeFiltering drops events for zones outside the session mode.
func TestSessionModeFiltering(t *testing.T) {
	t.Parallel()

	s := New(alarm.ModeHome, testZones(), correlation.DefaultGlobalThreshold)

	// The night zone participates in away mode only.
	require.Nil(t, s.Zone("zone-night"))

	r := s.Process(sev(t, "bed_window", event.TypeContact, "zone-night"))
	require.Equal(t, correlation.Rejected, r.Outcome)
	require.Zero(t, s.GlobalScore())
}

// TestSessionResetScores wipes local and global state for a clean re-arm.
func TestSessionResetScores(t *testing.T) {
	t.Parallel()

	s := New(alarm.ModeAway, testZones(), correlation.DefaultGlobalThreshold)
	s.Process(sev(t, "front_door", event.TypeContact, "zone-day"))
	s.Process(sev(t, "bed_window", event.TypeContact, "zone-night"))

	s.ResetScores()
	require.Zero(t, s.GlobalScore())
	require.Empty(t, s.FirstZoneID())
	require.Zero(t, s.ZoneScores()["zone-day"])
	require.False(t, s.AnyWindowOpen())
}
