package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
)

// TestClassifyScores verifies the fixed score table of the classification contract.
func TestClassifyScores(t *testing.T) {
	t.Parallel()

	cases := []struct {
		typ   Type
		score int
	}{
		{TypeContact, 70},
		{TypeMotion, 40},
		{TypeRadar, 60},
		{TypeCombinedRadar, 60},
		{TypeCameraPerson, 30},
	}

	for _, tc := range cases {
		ev, err := Classify("binary_sensor.test", "Test", tc.typ, "zone-1", 0.9, time.Now())
		require.NoError(t, err, "type %s", tc.typ)
		require.Equal(t, tc.score, ev.Score, "type %s", tc.typ)
	}
}

// TestClassifyUnknownType ensures types outside the contract are refused.
func TestClassifyUnknownType(t *testing.T) {
	t.Parallel()

	_, err := Classify("binary_sensor.test", "Test", Type("seismic"), "zone-1", 0, time.Now())
	require.ErrorIs(t, err, ErrUnknownType)
}

// TestClassifyLowConfidencePerson ensures camera-person detections below 60%
// are rejected before classification and never produce an event.
func TestClassifyLowConfidencePerson(t *testing.T) {
	t.Parallel()

	_, err := Classify("cam_entrance", "Entrance", TypeCameraPerson, "zone-1", 0.55, time.Now())
	require.ErrorIs(t, err, ErrLowConfidence)

	ev, err := Classify("cam_entrance", "Entrance", TypeCameraPerson, "zone-1", 0.60, time.Now())
	require.NoError(t, err)
	require.Equal(t, ScoreCameraPerson, ev.Score)
}

// TestVolumetricSubtype checks the motion/radar family mapping used by the
// diversity predicates.
func TestVolumetricSubtype(t *testing.T) {
	t.Parallel()

	require.Equal(t, TypeMotion, TypeMotion.VolumetricSubtype())
	require.Equal(t, TypeRadar, TypeRadar.VolumetricSubtype())
	require.Equal(t, TypeRadar, TypeCombinedRadar.VolumetricSubtype())
	require.False(t, TypeContact.IsVolumetric())
	require.False(t, TypeCameraPerson.IsVolumetric())
	require.True(t, TypeCombinedRadar.IsVolumetric())
}

// TestScopeActiveInMode verifies the mode-scope contract.
func TestScopeActiveInMode(t *testing.T) {
	t.Parallel()

	require.True(t, ScopeBoth.ActiveInMode(alarm.ModeAway))
	require.True(t, ScopeBoth.ActiveInMode(alarm.ModeHome))
	require.True(t, ScopeAwayOnly.ActiveInMode(alarm.ModeAway))
	require.False(t, ScopeAwayOnly.ActiveInMode(alarm.ModeHome))
	require.True(t, ScopeHomeOnly.ActiveInMode(alarm.ModeHome))
	require.False(t, ScopeHomeOnly.ActiveInMode(alarm.ModeAway))
}

// TestSensorEventClone verifies Clone returns a copy and handles nil safely.
func TestSensorEventClone(t *testing.T) {
	t.Parallel()

	require.Nil(t, (*SensorEvent)(nil).Clone())

	ev, err := Classify("binary_sensor.door", "Front Door", TypeContact, "zone-1", 0, time.Now())
	require.NoError(t, err)

	cloned := ev.Clone()
	require.Equal(t, ev, cloned)
	require.NotSame(t, ev, cloned)
}
